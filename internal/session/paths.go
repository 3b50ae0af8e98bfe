package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.tgsnap.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tgsnap")
}

// AccountDir returns the directory holding one account's session material.
func AccountDir(accountID string) string {
	return filepath.Join(BaseDir(), "accounts", accountID)
}

// SessionFile returns the Telegram session file path for an account.
func SessionFile(accountID string) string {
	return filepath.Join(AccountDir(accountID), "telegram.session")
}

// StorePath returns the snapshot database path, shared by all accounts.
func StorePath() string {
	return filepath.Join(BaseDir(), "snapshots.db")
}

// LogDir returns the daemon log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "tgsnapd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureAccountDir creates an account's directory with proper permissions.
func EnsureAccountDir(accountID string) error {
	return os.MkdirAll(AccountDir(accountID), 0700)
}

// EnsureBaseDirs creates the shared directory tree.
func EnsureBaseDirs() error {
	dirs := []string{
		BaseDir(),
		LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
