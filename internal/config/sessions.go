package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	EnvSessionsWorkDir  = "SCRIVENER_SESSIONS_WORK_DIR"
	EnvSessionsLockWait = "SCRIVENER_SESSIONS_LOCK_WAIT"
)

// SessionsConfig holds session working copy and locking parameters.
// WorkDir is where local working copies of session documents live.
// LockWait bounds how long a mutating operation waits for a busy document.
type SessionsConfig struct {
	WorkDir  string `toml:"work_dir"`
	LockWait string `toml:"lock_wait"`
}

// LockWaitDuration returns LockWait as a time.Duration.
func (c *SessionsConfig) LockWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockWait)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *SessionsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *SessionsConfig) Merge(overlay *SessionsConfig) {
	if overlay.WorkDir != "" {
		c.WorkDir = overlay.WorkDir
	}
	if overlay.LockWait != "" {
		c.LockWait = overlay.LockWait
	}
}

func (c *SessionsConfig) loadDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "scrivener-sessions")
	}
	if c.LockWait == "" {
		c.LockWait = "5s"
	}
}

func (c *SessionsConfig) loadEnv() {
	if v := os.Getenv(EnvSessionsWorkDir); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv(EnvSessionsLockWait); v != "" {
		c.LockWait = v
	}
}

func (c *SessionsConfig) validate() error {
	if _, err := time.ParseDuration(c.LockWait); err != nil {
		return fmt.Errorf("invalid lock_wait: %w", err)
	}
	return nil
}
