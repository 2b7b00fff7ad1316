package store

import "database/sql"

// Conversations returns one summary per peer userID has exchanged messages
// with, most recent first.
func (db *DB) Conversations(userID int64) ([]Conversation, error) {
	rows, err := db.Query(`
		WITH peers AS (
			SELECT receiver_id AS peer FROM messages WHERE sender_id = :me
			UNION
			SELECT sender_id FROM messages WHERE receiver_id = :me
		), last AS (
			SELECT p.peer,
				(SELECT m.id FROM messages m
				 WHERE (m.sender_id = :me AND m.receiver_id = p.peer) OR (m.sender_id = p.peer AND m.receiver_id = :me)
				 ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS message_id
			FROM peers p
		)
		SELECT u.id, u.name, u.email, u.role, m.body, m.created_at,
			(SELECT COUNT(*) FROM messages x WHERE x.sender_id = u.id AND x.receiver_id = :me AND x.is_read = 0)
		FROM last l
		JOIN users u ON u.id = l.peer
		JOIN messages m ON m.id = l.message_id
		ORDER BY m.created_at DESC, m.id DESC`, sql.Named("me", userID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	convs := []Conversation{}
	for rows.Next() {
		var c Conversation
		var at int64
		if err := rows.Scan(&c.PeerID, &c.PeerName, &c.PeerEmail, &c.PeerRole, &c.LastMessage, &at, &c.UnreadCount); err != nil {
			return nil, err
		}
		c.LastMessageAt = fromMillis(at)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
