package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"forge/internal/state"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file
const (
	EnvPort     = "FORGE_PORT"
	EnvLogLevel = "FORGE_LOG_LEVEL"
)

// Config represents the forge.yaml structure
type Config struct {
	Port             int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel         string `yaml:"log_level" validate:"oneof=debug info warn error"`
	SeedFile         string `yaml:"seed_file" validate:"required_if=WatchSeed true"`
	WatchSeed        bool   `yaml:"watch_seed"`
	// PersistKey names the storage entry the persistence middleware writes.
	// forge serve only has in-process storage, so entries last for one run.
	PersistKey       string `yaml:"persist_key" validate:"required"`
	MetricsNamespace string `yaml:"metrics_namespace" validate:"required"`
}

// Default returns the configuration used for fields the file leaves out
func Default() Config {
	return Config{
		Port:             8080,
		LogLevel:         "info",
		PersistKey:       "forge",
		MetricsNamespace: "forge",
	}
}

// Address returns the listen address for the API server
func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

var validate = validator.New()

// Validate checks field constraints and reports every failing field
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		errs := make([]error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Errorf("invalid %s: failed %q check (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return errors.Join(errs...)
	}
	return nil
}

// Loader manages configuration and seed file loading
type Loader struct {
	path   string
	logger *zap.Logger
	config *Config
}

// NewLoader creates a new configuration loader for the file at path
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger,
	}
}

// Load reads the config file, applies environment overrides and validates
// the result. A relative seed_file is resolved against the config directory.
func (l *Loader) Load() (*Config, error) {
	l.logger.Debug("Loading config", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.SeedFile != "" && !filepath.IsAbs(cfg.SeedFile) {
		cfg.SeedFile = filepath.Join(filepath.Dir(l.path), cfg.SeedFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.path, err)
	}

	l.config = &cfg
	l.logger.Info("Config loaded successfully",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("seed_file", cfg.SeedFile),
		zap.Bool("watch_seed", cfg.WatchSeed))
	return &cfg, nil
}

// GetConfig returns the last successfully loaded configuration
func (l *Loader) GetConfig() *Config {
	return l.config
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// LoadSeed reads a YAML mapping and returns it as a State.
// An empty file yields an empty State.
func LoadSeed(path string) (state.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}

	var seed map[string]any
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if seed == nil {
		seed = map[string]any{}
	}
	return state.State(seed), nil
}
