// Package rspconfig is the validated configuration surface for rspd. It follows the same layered-precedence shape as this codebase's
// file-server sibling config package: flags override environment, which
// overrides an optional YAML file, which overrides defaults.
package rspconfig

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "RSPD"

// Config is the full configuration surface for the rspd server.
type Config struct {
	// Port is the base TCP port. Each configured target listens on
	// Port+i in registration order.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// Targets names the targets to register, in order. The demo binary
	// resolves each name to a demonstration target; a real deployment
	// would resolve these through its own target registry.
	Targets []string `mapstructure:"targets" validate:"required,min=1,dive,required"`

	// ReadBufferSize is the peek-buffer capacity handed to each session's
	// framer. Zero selects the framer's built-in default.
	ReadBufferSize int `mapstructure:"read_buffer_size" validate:"omitempty,min=0"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls the logrus-backed diagnostic sink.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=trace debug info warn error"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when nothing else is supplied:
// port 3333, one "demo" target, info-level logging, metrics off.
func Default() *Config {
	return &Config{
		Port:           3333,
		Targets:        []string{"demo"},
		ReadBufferSize: 0,
		Logging:        LoggingConfig{Level: "info"},
		Metrics:        MetricsConfig{Enabled: false, Addr: ":9333"},
	}
}

// Load builds a viper instance layering flags (via bindFlags), environment
// variables prefixed RSPD_, and an optional YAML file over Default(), then
// validates the result.
func Load(configFile string, bindFlags func(*viper.Viper)) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("port", def.Port)
	v.SetDefault("targets", def.Targets)
	v.SetDefault("read_buffer_size", def.ReadBufferSize)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.addr", def.Metrics.Addr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("rspconfig: reading %s: %w", configFile, err)
		}
	}

	if bindFlags != nil {
		bindFlags(v)
	}

	var cfg Config
	hook := mapstructure.StringToSliceHookFunc(",")
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("rspconfig: decoding: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct-tag validation and returns a single wrapped
// error describing every violated field.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("rspconfig: invalid configuration: %w", err)
	}
	return nil
}
