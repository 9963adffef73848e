// Package gateiosconfig is the engine's configuration surface: a plain
// struct validated by the host before it is handed to session.New, in
// the shape of the config packages this module's ambient stack is
// grounded on. The engine never parses files or environment variables
// itself — that is a host concern.
package gateiosconfig

import (
	"regexp"

	"github.com/creasty/defaults"
)

// Environment names the runtime the engine is executing in. Only
// Simulator permits the development-token mint path.
type Environment string

const (
	EnvironmentDevice    Environment = "device"
	EnvironmentSimulator Environment = "simulator"
)

// Config is the trusted input the engine consumes: base_url,
// bundle_identifier, team_identifier, an optional development_token,
// log_level, and the runtime environment.
type Config struct {
	BaseURL          string      `json:"base_url" yaml:"base_url"`
	BundleIdentifier string      `json:"bundle_identifier" yaml:"bundle_identifier"`
	TeamIdentifier   string      `json:"team_identifier" yaml:"team_identifier"`
	DevelopmentToken string      `json:"development_token,omitempty" yaml:"development_token,omitempty"`
	LogLevel         string      `json:"log_level" yaml:"log_level" default:"info"`
	Environment      Environment `json:"environment" yaml:"environment"`
}

// WithDefaults applies creasty/defaults to unset fields (currently just
// LogLevel) and returns the same *Config for chaining.
func (c *Config) WithDefaults() *Config {
	_ = defaults.Set(c)
	return c
}

var teamIdentifierPattern = regexp.MustCompile(`^[A-Za-z0-9]{10}$`)

// Validate checks the fields the engine relies on being well-formed;
// it does not reach out to the network or the key store.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.BundleIdentifier == "" {
		return ErrMissingBundleIdentifier
	}
	if !teamIdentifierPattern.MatchString(c.TeamIdentifier) {
		return ErrInvalidTeamIdentifier
	}
	switch c.Environment {
	case EnvironmentDevice, EnvironmentSimulator, "":
	default:
		return ErrInvalidEnvironment
	}
	return nil
}

// AllowsDevelopmentToken reports whether the configured environment and
// development token together permit the development mint path.
func (c *Config) AllowsDevelopmentToken() bool {
	return c.DevelopmentToken != "" && c.Environment == EnvironmentSimulator
}
