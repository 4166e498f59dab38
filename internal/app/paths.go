package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// LogFileName is the fixed name of the primary crash report file.
	LogFileName = "keyward.log"
	// CrashOutputFileName receives fatal runtime crash output.
	CrashOutputFileName = "keyward-crash.log"
	// RegistryFileName is the default diagnostic registry database name.
	RegistryFileName = "registry.db"
)

// DataDir returns the per-user application data directory.
// Order of precedence:
// 1) config.yaml / KEYWARD_DATA_DIR: data_dir
// 2) Default: ConfigDir() (~/.config/keyward, or --config-dir)
// The directory is not created; callers decide what to do when it is absent.
func DataDir() (string, error) {
	if s, err := LoadSettings(); err == nil && s.DataDir != "" {
		return s.DataDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return dir, nil
}

// ExecutableDir returns the directory containing the running executable.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// GetRegistryPath resolves the diagnostic registry database path and ensures
// the parent directory exists.
func GetRegistryPath() (string, error) {
	path, _, err := ResolveRegistryPathDetailed()
	return path, err
}

// ResolveRegistryPathDetailed returns the resolved registry path along with the
// source of that decision. Order of precedence:
// 1) config.yaml / KEYWARD_REGISTRY_PATH: registry_path
// 2) Default: ~/.config/keyward/registry.db
func ResolveRegistryPathDetailed() (path string, source string, err error) {
	s, loadErr := LoadSettings()
	if loadErr == nil && s.RegistryPath != "" {
		resolved, ensureErr := EnsureDBDir(s.RegistryPath)
		return resolved, "settings(registry_path)", ensureErr
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	resolved, err := EnsureDBDir(filepath.Join(dir, RegistryFileName))
	return resolved, "default(~/.config/keyward/registry.db)", err
}

// EnsureDBDir creates the parent directory of dbPath.
func EnsureDBDir(dbPath string) (string, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}
