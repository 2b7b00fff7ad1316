package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const refreshPath = "/api/auth/refresh"

// RefreshError is returned by the token source when a new access token could
// not be obtained. The session must be re-established by signing in again.
type RefreshError struct {
	Status int
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed: status %d", e.Status)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// TokenSource is an oauth2.TokenSource over the backend's refresh endpoint.
// Tokens carry no expiry, so a token stays valid until Invalidate is called
// after the backend rejects it. Refreshes are serialized.
type TokenSource struct {
	mu           sync.Mutex
	baseURL      string
	http         *http.Client
	token        *oauth2.Token
	refreshToken string
	onRefresh    func(*oauth2.Token)
}

// NewTokenSource creates a source seeded with the given tokens.
func NewTokenSource(baseURL string, hc *http.Client, accessToken, refreshToken string) *TokenSource {
	ts := &TokenSource{
		baseURL:      baseURL,
		http:         hc,
		refreshToken: refreshToken,
	}
	if accessToken != "" {
		ts.token = &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer", RefreshToken: refreshToken}
	}
	return ts
}

// Token returns the current token, refreshing it first if it was invalidated.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token.Valid() {
		return s.token, nil
	}
	if s.refreshToken == "" {
		return nil, &RefreshError{Status: http.StatusUnauthorized, Err: fmt.Errorf("no refresh token")}
	}
	tok, err := s.refresh()
	if err != nil {
		return nil, err
	}
	s.token = tok
	if s.onRefresh != nil {
		s.onRefresh(tok)
	}
	return tok, nil
}

// Invalidate marks the current access token as expired if it is still the
// rejected one. Concurrent rejections of the same token refresh once.
func (s *TokenSource) Invalidate(rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && (rejected == "" || s.token.AccessToken == rejected) {
		expired := *s.token
		expired.Expiry = time.Now().Add(-time.Minute)
		s.token = &expired
	}
}

// CanRefresh reports whether a refresh token is available.
func (s *TokenSource) CanRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken != ""
}

func (s *TokenSource) refresh() (*oauth2.Token, error) {
	body, _ := json.Marshal(map[string]string{"refresh_token": s.refreshToken})
	timeout := s.http.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+refreshPath, bytes.NewReader(body))
	if err != nil {
		return nil, &RefreshError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &RefreshError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &RefreshError{Status: resp.StatusCode}
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &RefreshError{Status: resp.StatusCode, Err: err}
	}
	if out.AccessToken == "" {
		return nil, &RefreshError{Status: resp.StatusCode, Err: fmt.Errorf("invalid refresh response")}
	}
	if out.RefreshToken != "" {
		s.refreshToken = out.RefreshToken
	}
	return &oauth2.Token{AccessToken: out.AccessToken, TokenType: "Bearer", RefreshToken: s.refreshToken}, nil
}
