package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExecutableDir returns the directory where the current executable resides.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err == nil && strings.TrimSpace(exe) != "" {
		if resolved, resolveErr := filepath.EvalSymlinks(exe); resolveErr == nil && strings.TrimSpace(resolved) != "" {
			exe = resolved
		}
		return filepath.Dir(exe)
	}

	if wd, wdErr := os.Getwd(); wdErr == nil && strings.TrimSpace(wd) != "" {
		return wd
	}
	return "."
}

// ResolveRuntimePath resolves runtime directories against the executable directory.
func ResolveRuntimePath(raw string, fallbackSubdir string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = strings.TrimSpace(fallbackSubdir)
		if target == "" {
			return ExecutableDir()
		}
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(ExecutableDir(), target))
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "development"
}

func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) DataDir() string {
	return ResolveRuntimePath(c.Paths.Data, "data")
}

func (c *AppConfig) BackupDir() string {
	return ResolveRuntimePath(c.Paths.Backups, "backups")
}

// PendingDir holds one JSON file per outstanding token.
func (c *AppConfig) PendingDir() string {
	return filepath.Join(c.DataDir(), "pending")
}

// ConsumedDir holds the ledger of already confirmed tokens.
func (c *AppConfig) ConsumedDir() string {
	return filepath.Join(c.DataDir(), "consumed")
}

// SubscribersPath is the CSV subscriber list.
func (c *AppConfig) SubscribersPath() string {
	return filepath.Join(c.DataDir(), "subscribers.csv")
}

// SQLitePath is the database file used by the sqlite driver.
func (c *AppConfig) SQLitePath() string {
	if c.Database.Path != "" {
		return ResolveRuntimePath(c.Database.Path, "")
	}
	return filepath.Join(c.DataDir(), defaultSQLiteFile)
}
