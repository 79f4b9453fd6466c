package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings are process-level knobs read from TUNNELER_* environment
// variables. Command-line flags take precedence.
type Settings struct {
	ConfigPath    string        `envconfig:"CONFIG" default:""`
	DefaultUser   string        `envconfig:"DEFAULT_USER" default:""`
	SSHBinary     string        `envconfig:"SSH_BINARY" default:"ssh"`
	SSHDebugLevel int           `envconfig:"SSH_DEBUG_LEVEL" default:"0"`
	Workers       int           `envconfig:"WORKERS" default:"20"`
	StopGrace     time.Duration `envconfig:"STOP_GRACE" default:"2s"`
	Debug         bool          `envconfig:"DEBUG" default:"false"`
}

const EnvPrefix = "TUNNELER"

func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// Base returns the lowest config layer implied by the settings.
func (s Settings) Base() Config {
	cfg := New()
	cfg.Common.DefaultUser = s.DefaultUser
	return cfg
}
