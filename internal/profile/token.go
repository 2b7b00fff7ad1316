package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Token is the stored credential pair for a profile.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// LoadToken reads a token file. A missing file returns an empty token.
func LoadToken(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Token{}, nil
	}
	if err != nil {
		return Token{}, err
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok atomically with owner-only permissions.
func SaveToken(path string, tok Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if tok.SavedAt.IsZero() {
		tok.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
