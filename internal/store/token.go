package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IssueTokens creates a fresh access/refresh pair for userID.
func (db *DB) IssueTokens(userID int64) (Tokens, error) {
	now := time.Now().UnixMilli()
	t := Tokens{AccessToken: uuid.NewString(), RefreshToken: uuid.NewString()}
	err := db.inTx("issue tokens", func(tx *sql.Tx) error {
		for kind, tok := range map[string]string{"access": t.AccessToken, "refresh": t.RefreshToken} {
			if _, err := tx.Exec(`INSERT INTO tokens (token, user_id, kind, created_at) VALUES (?, ?, ?, ?)`, tok, userID, kind, now); err != nil {
				return fmt.Errorf("insert %s token: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return Tokens{}, err
	}
	return t, nil
}

// Authenticate returns the active user owning an access token, or nil.
func (db *DB) Authenticate(accessToken string) (*User, error) {
	return db.userForToken(accessToken, "access")
}

// Refresh exchanges a refresh token for a new access token. Older access
// tokens for the user are revoked. It returns "" if the refresh token is
// unknown or the account is inactive.
func (db *DB) Refresh(refreshToken string) (string, error) {
	u, err := db.userForToken(refreshToken, "refresh")
	if err != nil || u == nil {
		return "", err
	}
	access := uuid.NewString()
	err = db.inTx("refresh token", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM tokens WHERE user_id = ? AND kind = 'access'`, u.ID); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO tokens (token, user_id, kind, created_at) VALUES (?, ?, 'access', ?)`,
			access, u.ID, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return "", err
	}
	return access, nil
}

// RevokeAccess deletes every access token for userID.
func (db *DB) RevokeAccess(userID int64) error {
	_, err := db.Exec(`DELETE FROM tokens WHERE user_id = ? AND kind = 'access'`, userID)
	return err
}

func (db *DB) userForToken(token, kind string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	var id int64
	err := db.QueryRow(`
		SELECT t.user_id FROM tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ? AND t.kind = ? AND u.is_active = 1`, token, kind).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return db.GetUser(id)
}
