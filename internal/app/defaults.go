package app

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/text/language"
)

//nolint:gochecknoglobals // process-wide locale, set once during bootstrap
var currentLocale atomic.Value

// Locale returns the process-wide locale applied by ApplyLocale.
func Locale() language.Tag {
	if tag, ok := currentLocale.Load().(language.Tag); ok {
		return tag
	}
	return language.Und
}

// ApplyLocale parses id as a BCP 47 tag and makes it the process locale.
// LANG and LC_ALL are exported so child processes and the terminal layer agree.
func ApplyLocale(id string) (language.Tag, error) {
	tag, err := language.Parse(id)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", id, err)
	}
	posix := posixLocale(tag)
	for _, key := range []string{"LANG", "LC_ALL"} {
		if err := os.Setenv(key, posix); err != nil {
			return language.Und, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	currentLocale.Store(tag)
	return tag, nil
}

func posixLocale(tag language.Tag) string {
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.No {
		return base.String() + ".UTF-8"
	}
	return base.String() + "_" + region.String() + ".UTF-8"
}

// ApplyRenderingMode selects the terminal color depth used by every screen.
func ApplyRenderingMode(disableTrueColor bool) error {
	if !disableTrueColor {
		return nil
	}
	return os.Setenv("TCELL_TRUECOLOR", "disable")
}

// ConfigureProcessDefaults applies locale and rendering settings. It must run
// before any UI is constructed.
func ConfigureProcessDefaults(s Settings) error {
	if _, err := ApplyLocale(s.EffectiveLocale()); err != nil {
		return err
	}
	return ApplyRenderingMode(s.DisableTrueColor)
}
