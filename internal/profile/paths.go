// Package profile names and locates per-account state: a profile is one
// signed-in backend account with its own daemon, socket and tokens.
package profile

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths roots the config and data directories.
type Paths struct {
	ConfigDir string
	DataDir   string
}

// DefaultPaths uses the XDG base directories.
func DefaultPaths() Paths {
	return Paths{
		ConfigDir: filepath.Join(xdg.ConfigHome, "fitmsg"),
		DataDir:   filepath.Join(xdg.DataHome, "fitmsg"),
	}
}

// ConfigPath returns the global config file path.
func (p Paths) ConfigPath() string {
	return filepath.Join(p.ConfigDir, "config.toml")
}

// EnvPath returns the optional .env file next to the config.
func (p Paths) EnvPath() string {
	return filepath.Join(p.ConfigDir, ".env")
}

// Dir returns the profile-specific directory.
func (p Paths) Dir(name string) string {
	return filepath.Join(p.DataDir, "profiles", name)
}

// SocketPath returns the daemon's unix socket path.
func (p Paths) SocketPath(name string) string {
	return filepath.Join(p.Dir(name), "fitmsgd.sock")
}

// TokenPath returns the stored token file path.
func (p Paths) TokenPath(name string) string {
	return filepath.Join(p.Dir(name), "token.json")
}

// LogDir returns the log directory for a profile.
func (p Paths) LogDir(name string) string {
	return filepath.Join(p.Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func (p Paths) LogPath(name string) string {
	return filepath.Join(p.LogDir(name), "fitmsgd.log")
}

// EnsureDir creates the profile directory tree with private permissions.
func (p Paths) EnsureDir(name string) error {
	for _, d := range []string{p.Dir(name), p.LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// DevServerDBPath returns the reference backend's database path.
func (p Paths) DevServerDBPath() string {
	return filepath.Join(p.DataDir, "devserver.db")
}
