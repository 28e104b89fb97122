// Package config loads vendorkit configuration from the environment and
// an optional config file, exactly once at the program boundary. Library
// components never read the process environment themselves; they receive
// explicit structs built here.
package config

import (
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/vendorkit/vendorkit/pkg/api"
	"github.com/vendorkit/vendorkit/pkg/auth"
)

// VendorConfig describes how to reach one vendor API. Fields left zero in
// a named vendor section inherit from the defaults section.
type VendorConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Credential    string `mapstructure:"credential"`
	EnvVar        string `mapstructure:"env_var"`
	DashboardURL  string `mapstructure:"dashboard_url"`
	Name          string `mapstructure:"name"`
	VersionHeader string `mapstructure:"version_header"`
	APIVersion    string `mapstructure:"api_version"`
	Scheme        string `mapstructure:"scheme"`
	Encoding      string `mapstructure:"encoding"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
}

// PollConfig tunes the operation poller. Milliseconds so config files stay
// integer-only.
type PollConfig struct {
	IntervalMs int `mapstructure:"interval_ms"`
	TimeoutMs  int `mapstructure:"timeout_ms"`
}

// VendorSection is a raw vendor config block. Keeping it untyped means
// only the keys a section actually sets override the defaults when merged
// in Vendor.
type VendorSection map[string]any

// Config is the full process configuration.
type Config struct {
	LogLevel  string                   `mapstructure:"log_level"`
	LogFormat string                   `mapstructure:"log_format"`
	Defaults  VendorConfig             `mapstructure:"defaults"`
	Vendors   map[string]VendorSection `mapstructure:"vendors"`
	Poll      PollConfig               `mapstructure:"poll"`
}

// Load unmarshals the global viper state (environment plus any config
// file the caller bound in its init) and resolves vendor credentials from
// their named environment variables. This is the only place the process
// environment is read.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Poll.IntervalMs <= 0 {
		cfg.Poll.IntervalMs = 2000
	}
	if cfg.Poll.TimeoutMs <= 0 {
		cfg.Poll.TimeoutMs = 300000
	}

	if cfg.Defaults.Credential == "" && cfg.Defaults.EnvVar != "" {
		cfg.Defaults.Credential = os.Getenv(cfg.Defaults.EnvVar)
	}
	for _, section := range cfg.Vendors {
		credential, _ := section["credential"].(string)
		envVar, _ := section["env_var"].(string)
		if credential == "" && envVar != "" {
			section["credential"] = os.Getenv(envVar)
		}
	}
	return cfg, nil
}

// Vendor resolves the named vendor section merged over the defaults
// section. Zero fields in the vendor section keep the default value.
func (c Config) Vendor(name string) (VendorConfig, error) {
	section, ok := c.Vendors[name]
	if !ok {
		return VendorConfig{}, errors.Errorf("unknown vendor %q", name)
	}

	merged := c.Defaults
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		ZeroFields:       false,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return VendorConfig{}, errors.Wrap(err, "failed to create vendor decoder")
	}
	if err := decoder.Decode(section); err != nil {
		return VendorConfig{}, errors.Wrapf(err, "failed to merge vendor %q", name)
	}
	if merged.Name == "" {
		merged.Name = name
	}
	return merged, nil
}

// ClientConfig converts a resolved vendor section into the request
// executor's configuration.
func (v VendorConfig) ClientConfig() api.Config {
	scheme := auth.SchemeBearer
	if v.Scheme != "" {
		scheme = auth.Scheme(v.Scheme)
	}
	return api.Config{
		BaseURL:       v.BaseURL,
		Credential:    v.Credential,
		Vendor:        v.Name,
		EnvVar:        v.EnvVar,
		DashboardURL:  v.DashboardURL,
		VersionHeader: v.VersionHeader,
		APIVersion:    v.APIVersion,
		Scheme:        scheme,
		Encoding:      api.Encoding(v.Encoding),
		Timeout:       time.Duration(v.TimeoutMs) * time.Millisecond,
	}
}

// Interval returns the poll interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// Timeout returns the poll budget as a duration.
func (p PollConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}
