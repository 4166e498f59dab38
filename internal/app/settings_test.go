package app

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetSettingsStateForTest() {
	settingsOnce = sync.Once{}
	settings = Settings{}
	settingsErr = nil
	SetConfigDirOverride("")
}

func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })
}

func TestLoadSettings_PrefersUserConfigOverLocal(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	chdirForTest(t, workdir)

	userConfigPath := filepath.Join(home, ".config", "keyward", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("data_dir: /tmp/from-user\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("data_dir: /tmp/from-local\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-user", s.DataDir)
}

func TestLoadSettings_FallsBackToLocalConfig(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	chdirForTest(t, workdir)

	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("locale: fr\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "fr", s.EffectiveLocale())
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	chdirForTest(t, t.TempDir())

	userConfigPath := filepath.Join(home, ".config", "keyward", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("registry_path: /tmp/file.db\nlocale: de\n"), 0o600))

	t.Setenv("KEYWARD_REGISTRY_PATH", "/tmp/env.db")
	t.Setenv("KEYWARD_DISABLE_CRASH_HANDLER", "true")

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/env.db", s.RegistryPath)
	require.Equal(t, "de", s.Locale)
	require.True(t, s.DisableCrashHandler)
}

func TestLoadSettings_DefaultsWithoutAnyFile(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	t.Setenv("HOME", t.TempDir())
	chdirForTest(t, t.TempDir())

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, DefaultLocale, s.EffectiveLocale())
	require.False(t, s.DisableCrashHandler)
}

func TestLoadSettings_InvalidYAMLReturnsError(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	userConfigPath := filepath.Join(home, ".config", "keyward", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("data_dir: ["), 0o600))

	_, err := LoadSettings()
	require.Error(t, err)
}
