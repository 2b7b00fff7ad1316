// Package client is the authenticated REST client for the studio backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/matheus3301/fitmsg/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRosterTTL = 30 * time.Second
	rosterCacheSize  = 8

	// RequestIDHeader carries a per-request id for backend log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	Role         model.Role
	AccessToken  string
	RefreshToken string
	Timeout      time.Duration
	RosterTTL    time.Duration

	// SelfID is the signed-in user's id, used when a message row omits is_mine.
	SelfID int64

	// Transport is the base round tripper; defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// OnTokenRefresh is called with every freshly issued token, e.g. to persist it.
	OnTokenRefresh func(*oauth2.Token)
	Logger         *zap.Logger
}

// Client performs authenticated JSON calls against the backend.
type Client struct {
	baseURL string
	role    model.Role
	selfID  int64
	http    *http.Client
	tokens  *TokenSource
	roster  *expirable.LRU[string, []model.Contact]
	logger  *zap.Logger
}

// New builds a client. The bearer token is attached by an oauth2 transport and
// refreshed once on 401 through /api/auth/refresh.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RosterTTL <= 0 {
		opts.RosterTTL = defaultRosterTTL
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	ts := NewTokenSource(baseURL, &http.Client{Transport: base, Timeout: opts.Timeout}, opts.AccessToken, opts.RefreshToken)
	ts.onRefresh = opts.OnTokenRefresh

	return &Client{
		baseURL: baseURL,
		role:    opts.Role,
		selfID:  opts.SelfID,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: ts, Base: base},
			Timeout:   opts.Timeout,
		},
		tokens: ts,
		roster: expirable.NewLRU[string, []model.Contact](rosterCacheSize, nil, opts.RosterTTL),
		logger: logger,
	}, nil
}

// Role returns the role the client was configured with.
func (c *Client) Role() model.Role { return c.role }

// getJSON performs a GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = b
	}

	resp, err := c.send(ctx, op, method, path, payload)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && c.tokens.CanRefresh() {
		_ = resp.Body.Close()
		c.logger.Debug("access token rejected, refreshing", zap.String("op", op))
		c.tokens.Invalidate(bearer(resp.Request))
		resp, err = c.send(ctx, op, method, path, payload)
		if err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &model.ServerError{Op: op, Status: resp.StatusCode, Message: "malformed response body"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		var rerr *RefreshError
		if errors.As(err, &rerr) {
			return nil, &model.ServerError{Op: op, Status: http.StatusUnauthorized, Message: "session expired, sign in again"}
		}
		return nil, &model.TransportError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	c.logger.Debug("backend call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}

// bearer returns the access token a request was sent with.
func bearer(req *http.Request) string {
	if req == nil {
		return ""
	}
	tok, _ := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	return tok
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// serverError extracts the backend's message from a non-2xx response. The
// backend uses {"detail": ...}; {"error": ...} and {"message": ...} are also accepted.
func serverError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Detail  any    `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(raw, &body) == nil {
		switch d := body.Detail.(type) {
		case string:
			msg = d
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				msg = string(b)
			}
		}
		if msg == "" {
			msg = body.Error
		}
		if msg == "" {
			msg = body.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
		if len(msg) > 200 || strings.HasPrefix(msg, "<") {
			msg = ""
		}
	}
	return &model.ServerError{Op: op, Status: resp.StatusCode, Message: msg}
}
