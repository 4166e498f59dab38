package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is applied process-wide when no locale is configured.
const DefaultLocale = "en"

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys; env tags override file values.
type Settings struct {
	DataDir             string `yaml:"data_dir" env:"KEYWARD_DATA_DIR"`
	RegistryPath        string `yaml:"registry_path" env:"KEYWARD_REGISTRY_PATH"`
	Locale              string `yaml:"locale" env:"KEYWARD_LOCALE"`
	DisableTrueColor    bool   `yaml:"disable_true_color" env:"KEYWARD_DISABLE_TRUE_COLOR"`
	DisableCrashHandler bool   `yaml:"disable_crash_handler" env:"KEYWARD_DISABLE_CRASH_HANDLER"`
}

// EffectiveLocale returns the configured locale or DefaultLocale.
func (s Settings) EffectiveLocale() string {
	if s.Locale == "" {
		return DefaultLocale
	}
	return s.Locale
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
//
//nolint:gochecknoglobals // sync.Once singleton is intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error
)

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/keyward/config.yaml
// 2) /etc/keyward/config.yaml
// 3) ./config.yaml
// KEYWARD_* environment variables are applied on top of whichever file won.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		s, err := loadFirstSettingsFile()
		if err != nil {
			settingsErr = err
			return
		}
		if err := env.Parse(&s); err != nil {
			settingsErr = err
			return
		}
		settings = s
	})

	return settings, settingsErr
}

func loadFirstSettingsFile() (Settings, error) {
	dir, err := ConfigDir()
	if err != nil {
		return Settings{}, err
	}

	paths := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(string(os.PathSeparator), "etc", Name, "config.yaml"),
		"config.yaml",
	}
	for _, p := range paths {
		s, err := loadSettingsFile(p)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, err
		}
	}
	return Settings{}, nil
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
