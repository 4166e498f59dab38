package app

import (
	"os"
	"path/filepath"
	"sync"
)

// Name is the application name used for per-user directories.
const Name = "keyward"

//nolint:gochecknoglobals // mutex-protected process-wide override for CLI --config-dir
var (
	configDirOverrideMu sync.RWMutex
	configDirOverride   string
)

// SetConfigDirOverride sets a process-wide config directory override.
// Intended for CLI flag support (e.g. --config-dir).
func SetConfigDirOverride(dir string) {
	configDirOverrideMu.Lock()
	configDirOverride = dir
	configDirOverrideMu.Unlock()
}

func getConfigDirOverride() string {
	configDirOverrideMu.RLock()
	v := configDirOverride
	configDirOverrideMu.RUnlock()
	return v
}

// ConfigDir returns ~/.config/keyward/ on all platforms.
func ConfigDir() (string, error) {
	if override := getConfigDirOverride(); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", Name), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# keyward configuration
# Run: keyward --help

# Optional: directory holding keyward.log and keyward-crash.log.
# Can also be set via KEYWARD_DATA_DIR.
# data_dir: ~/.config/keyward

# Optional: override the diagnostic registry location.
# Can also be set via KEYWARD_REGISTRY_PATH.
# registry_path: ~/.config/keyward/registry.db

# Locale applied before any UI is constructed.
# locale: en

# Set to true to force 256-color rendering.
# disable_true_color: false

# Set to true to let panics reach the Go runtime unreported.
# Can also be set via KEYWARD_DISABLE_CRASH_HANDLER.
# disable_crash_handler: false
`
