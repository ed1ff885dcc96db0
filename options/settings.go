package options

import (
	"os"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Settings are the process mode switches. They are passed to constructors
// instead of living in globals so independent configurations can coexist.
type Settings struct {
	// Debug enables extra consistency checks after resource operations.
	Debug bool
	// Timing logs per-frame and per-operation durations.
	Timing bool
	// Production disables debug output regardless of the other flags.
	Production bool
}

// DebugChecks reports whether consistency checks should run.
func (s Settings) DebugChecks() bool { return s.Debug && !s.Production }

// LogLevel maps the settings to a logrus level.
func (s Settings) LogLevel() logrus.Level {
	switch {
	case s.Production:
		return logrus.WarnLevel
	case s.Debug || s.Timing:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Lookup returns the value of key or def when unset.
type Lookup func(key, def string) string

// FromEnv reads the settings from the process environment:
// GO_ENV=production, DEBUG=* or DEBUG=molgl, MOLGL_TIMING=true.
func FromEnv() Settings {
	return FromLookup(envy.Get)
}

// FromLookup reads the settings through an arbitrary lookup function.
func FromLookup(get Lookup) Settings {
	debug := get("DEBUG", "")
	return Settings{
		Production: strings.EqualFold(get("GO_ENV", ""), "production"),
		Debug:      debug == "*" || debug == "molgl",
		Timing:     parseBool(get("MOLGL_TIMING", "")),
	}
}

// LoadDotEnv loads the given dotenv files into the environment. Missing
// files are skipped; existing variables are not overridden.
func LoadDotEnv(paths ...string) error {
	var present []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return err
	}
	envy.Reload()
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
