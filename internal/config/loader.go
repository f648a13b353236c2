// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"huddle/internal/types"
)

// LoadConfig loads and validates the service configuration from the
// environment. It returns a types.AppError with ErrCodeConfigMissingSecret
// when a required secret is absent so callers can fail fast with a clear
// diagnostic.
func LoadConfig() (*Config, error) {
	// Step 1: Enforce UTC timezone to prevent drift bugs. All persisted
	// timestamps and event-ordering comparisons assume UTC.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent). godotenv does NOT
	// override existing environment variables.
	_ = godotenv.Load()

	// Step 3: Process envconfig tags. The empty prefix means tags are read
	// verbatim (envconfig:"PORT" reads PORT directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeConfigMissingSecret,
			"failed to process environment configuration",
			err,
		)
	}

	// Step 4: Validate the populated struct.
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateConfig runs struct-tag validation and translates failures into a
// single diagnostic error listing every offending field.
func validateConfig(cfg *Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(
			types.ErrCodeConfigMissingSecret,
			"configuration validation failed",
			err,
		)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}

	return types.NewAppError(
		types.ErrCodeConfigMissingSecret,
		"invalid configuration: "+strings.Join(fields, ", "),
		err,
	)
}
