package store

import "time"

const notificationLimit = 50

// CreateNotification inserts n and sets its ID.
func (db *DB) CreateNotification(n *Notification) error {
	if n.Type == "" {
		n.Type = "system"
	}
	if n.Importance == "" {
		n.Importance = "normal"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`
		INSERT INTO notifications (user_id, title, message, notification_type, importance, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Type, n.Importance, n.IsRead, millis(n.CreatedAt))
	if err != nil {
		return err
	}
	n.ID, err = res.LastInsertId()
	return err
}

// Notifications returns the newest notifications for userID.
func (db *DB) Notifications(userID int64, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, user_id, title, message, notification_type, importance, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := db.Query(query, userID, notificationLimit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	list := []Notification{}
	for rows.Next() {
		var n Notification
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Importance, &n.IsRead, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = fromMillis(created)
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkNotificationRead marks one of userID's notifications as read. It
// reports false if the notification does not belong to the user.
func (db *DB) MarkNotificationRead(userID, id int64) (bool, error) {
	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}
	if _, err := db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ?`, id); err != nil {
		return false, err
	}
	return true, nil
}

// MarkAllNotificationsRead marks every unread notification for userID as
// read and returns how many changed.
func (db *DB) MarkAllNotificationsRead(userID int64) (int64, error) {
	res, err := db.Exec(`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
