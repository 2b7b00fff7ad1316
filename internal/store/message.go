package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrUserNotFound is returned when a message names an unknown receiver.
var ErrUserNotFound = errors.New("user not found")

const previewLimit = 100

// SendMessage stores a message from sender to receiverID and a "message"
// notification for the receiver, in one transaction.
func (db *DB) SendMessage(sender *User, receiverID int64, body string) (*Message, error) {
	receiver, err := db.GetUser(receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	now := time.Now().UTC()
	var id int64
	err = db.inTx("send message", func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO messages (sender_id, receiver_id, body, is_read, created_at)
			VALUES (?, ?, ?, 0, ?)`, sender.ID, receiverID, body, millis(now))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO notifications (user_id, title, message, notification_type, importance, is_read, created_at)
			VALUES (?, ?, ?, 'message', 'normal', 0, ?)`,
			receiverID, "New message from "+sender.Name, preview(body), millis(now)); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Message{ID: id, SenderID: sender.ID, ReceiverID: receiverID, Body: body, CreatedAt: fromMillis(millis(now))}, nil
}

// Thread returns every message between userID and peerID, oldest first, and
// then marks the peer's messages to userID as read. The returned rows reflect
// the read state before the update.
func (db *DB) Thread(userID, peerID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, sender_id, receiver_id, body, is_read, created_at
		FROM messages
		WHERE (sender_id = :me AND receiver_id = :peer) OR (sender_id = :peer AND receiver_id = :me)
		ORDER BY created_at, id`, sql.Named("me", userID), sql.Named("peer", peerID))
	if err != nil {
		return nil, err
	}
	msgs := []Message{}
	for rows.Next() {
		var m Message
		var created int64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.IsRead, &created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		m.CreatedAt = fromMillis(created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if _, err := db.Exec(`
		UPDATE messages SET is_read = 1
		WHERE sender_id = ? AND receiver_id = ? AND is_read = 0`, peerID, userID); err != nil {
		return nil, fmt.Errorf("mark thread read: %w", err)
	}
	return msgs, nil
}

// MarkRead marks the peer's messages to userID as read, along with the user's
// unread message notifications. It returns the number of messages updated.
func (db *DB) MarkRead(userID, peerID int64) (int64, error) {
	var n int64
	err := db.inTx("mark read", func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE messages SET is_read = 1
			WHERE sender_id = ? AND receiver_id = ? AND is_read = 0`, peerID, userID)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE notifications SET is_read = 1
			WHERE user_id = ? AND notification_type = 'message' AND is_read = 0`, userID)
		return err
	})
	return n, err
}

// UnreadCount returns the number of unread messages addressed to userID.
func (db *DB) UnreadCount(userID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0`, userID).Scan(&n)
	return n, err
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLimit {
		return body
	}
	var b strings.Builder
	for i, r := range []rune(body) {
		if i == previewLimit {
			break
		}
		b.WriteRune(r)
	}
	return b.String() + "..."
}
