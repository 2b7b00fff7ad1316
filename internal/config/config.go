// Package config loads fitmsg's TOML configuration and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/matheus3301/fitmsg/internal/model"
)

// Duration is a time.Duration written as "15s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents $XDG_CONFIG_HOME/fitmsg/config.toml.
type Config struct {
	DefaultProfile string  `toml:"default_profile"`
	Backend        Backend `toml:"backend"`
	Poll           Poll    `toml:"poll"`
	Log            Log     `toml:"log"`
}

// Backend describes the REST backend and the signed-in account.
type Backend struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
	Role    string   `toml:"role"`
	UserID  int64    `toml:"user_id"`
}

// Poll holds the polling cadences.
type Poll struct {
	Conversations Duration `toml:"conversations"`
	Notifications Duration `toml:"notifications"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: Backend{
			BaseURL: "http://localhost:8000",
			Timeout: Duration{30 * time.Second},
			Role:    string(model.RoleTrainer),
		},
		Poll: Poll{
			Conversations: Duration{15 * time.Second},
			Notifications: Duration{30 * time.Second},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks the values the daemon depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url %q: must be an http(s) URL", c.Backend.BaseURL)
	}
	if !model.ParseRole(c.Backend.Role).Valid() {
		return fmt.Errorf("backend.role %q: must be ADMIN, TRAINER or TRAINEE", c.Backend.Role)
	}
	if c.Backend.Timeout.Duration <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Poll.Conversations.Duration < time.Second || c.Poll.Notifications.Duration < time.Second {
		return fmt.Errorf("poll intervals must be at least 1s")
	}
	return nil
}

// Env holds overrides read from the environment and optional .env files.
type Env struct {
	BaseURL      string
	AccessToken  string
	RefreshToken string
	Role         string
	UserID       int64
}

// Environment variable names.
const (
	EnvBaseURL      = "FITMSG_BASE_URL"
	EnvAccessToken  = "FITMSG_ACCESS_TOKEN"
	EnvRefreshToken = "FITMSG_REFRESH_TOKEN"
	EnvRole         = "FITMSG_ROLE"
	EnvUserID       = "FITMSG_USER_ID"
)

// LoadEnv reads overrides from the process environment, falling back to the
// given .env files. Missing files are ignored; the process environment wins.
func LoadEnv(files ...string) (Env, error) {
	vals := map[string]string{}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Env{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range m {
			if _, seen := vals[k]; !seen {
				vals[k] = v
			}
		}
	}
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return vals[key]
	}

	env := Env{
		BaseURL:      get(EnvBaseURL),
		AccessToken:  get(EnvAccessToken),
		RefreshToken: get(EnvRefreshToken),
		Role:         get(EnvRole),
	}
	if raw := get(EnvUserID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Env{}, fmt.Errorf("%s: %w", EnvUserID, err)
		}
		env.UserID = id
	}
	return env, nil
}

// Apply overlays non-empty environment values onto the config.
func (c *Config) Apply(e Env) {
	if e.BaseURL != "" {
		c.Backend.BaseURL = e.BaseURL
	}
	if e.Role != "" {
		c.Backend.Role = e.Role
	}
	if e.UserID != 0 {
		c.Backend.UserID = e.UserID
	}
}
