// Package config loads the optional roadmapctl TOML configuration. The
// core is single-process with no tick loop, so the surface is small: the
// roadmap root, the default actor identity, the log level, a lock timeout
// and schema version strings — but the TOML-with-custom-Duration idiom is
// carried over from the teacher unchanged.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s"
// or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the top-level roadmapctl configuration document.
type Config struct {
	General General `toml:"general"`
	Schema  Schema  `toml:"schema"`
}

// General holds root path and identity defaults.
type General struct {
	Root          string   `toml:"root"`           // roadmap root, default ".roadmap"
	DefaultActor  string   `toml:"default_actor"`  // actor stamped when none is supplied
	LockTimeout   Duration `toml:"lock_timeout"`    // parsed only; lock.Acquire never waits and nothing reads this field
	LogLevel      string   `toml:"log_level"`
}

// Schema holds schema_version strings read from the [schema] table. They
// are parsed only: Default leaves them empty, and the event log and
// projector stamp model.CurrentSchemaVersion ("0.4.0") and
// model.LegacySchemaVersion ("0.3.0") whatever these fields hold.
type Schema struct {
	Current string `toml:"current"`
	Legacy  string `toml:"legacy"`
}

const (
	defaultRoot    = ".roadmap"
	defaultActor   = "orchestrator"
	defaultLogLvl  = "info"
)

// Default returns a Config populated with the defaults every operation
// falls back to when no TOML file is present.
func Default() *Config {
	return &Config{
		General: General{
			Root:         defaultRoot,
			DefaultActor: defaultActor,
			LogLevel:     defaultLogLvl,
		},
	}
}

// Load reads and validates a roadmapctl TOML configuration file, applying
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.Root == "" {
		cfg.General.Root = defaultRoot
	}
	if cfg.General.DefaultActor == "" {
		cfg.General.DefaultActor = defaultActor
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = defaultLogLvl
	}
}
