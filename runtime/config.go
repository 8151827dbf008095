package runtime

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Package-level validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// Config is the full application configuration. Values come from an optional
// YAML file layered over struct-tag defaults, then validated.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Executor ExecutorConfig `yaml:"executor"`
	Driver   DriverConfig   `yaml:"driver"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" default:"localhost:8080" validate:"hostname_port"`
}

type CatalogConfig struct {
	Path string `yaml:"path" default:"data/catalog.db" validate:"required"`
}

type MatcherConfig struct {
	// MinSimilarity is the cosine-similarity floor below which input is
	// reported as unmatched.
	MinSimilarity float64 `yaml:"min_similarity" default:"0.1" validate:"gte=0,lte=1"`
}

type ExecutorConfig struct {
	// StepPause paces consecutive steps so external UI state can settle.
	StepPause time.Duration `yaml:"step_pause" default:"1s" validate:"gte=0"`
	// WaitFallback is used for wait steps with an absent or non-numeric value.
	WaitFallback time.Duration `yaml:"wait_fallback" default:"5s" validate:"gte=1s"`
	// ActionTimeout bounds a single navigate/click/type action, including the
	// element wait inside the action executor.
	ActionTimeout time.Duration `yaml:"action_timeout" default:"10s" validate:"gte=1s"`
}

// UnmarshalYAML parses the duration fields from their human-readable form
// ("1s", "500ms"); yaml.v3 has no native time.Duration support.
func (c *ExecutorConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		StepPause     string `yaml:"step_pause"`
		WaitFallback  string `yaml:"wait_fallback"`
		ActionTimeout string `yaml:"action_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	fields := []struct {
		src string
		dst *time.Duration
	}{
		{raw.StepPause, &c.StepPause},
		{raw.WaitFallback, &c.WaitFallback},
		{raw.ActionTimeout, &c.ActionTimeout},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return nil
}

type DriverConfig struct {
	// Kind selects the action executor implementation.
	Kind string `yaml:"kind" default:"webdriver" validate:"oneof=webdriver chrome"`
	// URL is the WebDriver endpoint (ignored by the chrome driver).
	URL string `yaml:"url" default:"http://localhost:4444" validate:"url_format"`
	// Headless applies to the chrome driver only.
	Headless bool `yaml:"headless" default:"false"`
}

// LoadConfig reads the YAML file at path (missing file is fine, defaults
// apply), layers it over defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error unmarshalling config: %w", err)
			}
		}
	}

	if err := validateConfig(*cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}
	return nil
}

func validateConfig(config any) error {
	if err := validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, fieldErr := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"field '%s' failed validation (rule: %s)",
					fieldErr.Namespace(),
					fieldErr.Tag(),
				))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errMessages, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func registerCustomValidators() {
	// hostname_port validates "host:port" format with a numeric port
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		host, port, err := net.SplitHostPort(addr)
		if err != nil || host == "" || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})

	// url_format validates URL structure
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})
}
