package app

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyLocale_ExportsPOSIXForm(t *testing.T) {
	t.Setenv("LANG", "")
	t.Setenv("LC_ALL", "")

	tag, err := ApplyLocale("en-GB")
	require.NoError(t, err)
	require.Equal(t, "en-GB", tag.String())
	require.Equal(t, "en_GB.UTF-8", os.Getenv("LANG"))
	require.Equal(t, "en_GB.UTF-8", os.Getenv("LC_ALL"))
	require.Equal(t, tag, Locale())
}

func TestApplyLocale_DefaultLocale(t *testing.T) {
	t.Setenv("LANG", "")
	t.Setenv("LC_ALL", "")

	tag, err := ApplyLocale(DefaultLocale)
	require.NoError(t, err)
	require.Equal(t, "en", tag.String())
	require.True(t, strings.HasPrefix(os.Getenv("LANG"), "en"))
	require.True(t, strings.HasSuffix(os.Getenv("LANG"), ".UTF-8"))
}

func TestApplyLocale_RejectsInvalidTag(t *testing.T) {
	_, err := ApplyLocale("not a locale!")
	require.Error(t, err)
}

func TestConfigureProcessDefaults_DisablesTrueColor(t *testing.T) {
	t.Setenv("LANG", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("TCELL_TRUECOLOR", "")

	require.NoError(t, ConfigureProcessDefaults(Settings{Locale: "de-DE", DisableTrueColor: true}))
	require.Equal(t, "disable", os.Getenv("TCELL_TRUECOLOR"))
	require.Equal(t, "de_DE.UTF-8", os.Getenv("LANG"))
}
