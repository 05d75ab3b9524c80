package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the site
type Config struct {
	// Server Configuration
	Environment string `env:"ENV" envDefault:"development" validate:"oneof=development production test"`
	Port        string `env:"PORT" envDefault:"8080" validate:"required,numeric"`

	// Form relay and asset store
	ContactEndpoint   string        `env:"CONTACT_ENDPOINT" validate:"required,http_url"`
	InquiryEndpoint   string        `env:"INQUIRY_ENDPOINT" validate:"required,http_url"`
	ResumeAssetURL    string        `env:"RESUME_ASSET_URL" validate:"required,http_url"`
	ProfilePhotoURL   string        `env:"PROFILE_PHOTO_URL" validate:"omitempty,http_url"`
	ContactResetAfter time.Duration `env:"CONTACT_RESET_AFTER" envDefault:"5s" validate:"gt=0"`
	InquiryResetAfter time.Duration `env:"INQUIRY_RESET_AFTER" envDefault:"7s" validate:"gt=0"`
	RelayTimeout      time.Duration `env:"RELAY_TIMEOUT" envDefault:"0s" validate:"gte=0"`
	// Largest inquiry attachment accepted, in bytes
	MaxAttachmentBytes int64 `env:"MAX_ATTACHMENT_BYTES" envDefault:"10485760" validate:"gt=0"`

	// Visitor state
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"30m" validate:"gt=0"`
	DatabasePath   string        `env:"DATABASE_PATH"`
	VisitRetention time.Duration `env:"VISIT_RETENTION" envDefault:"8760h" validate:"gt=0"`
	AdminToken     string        `env:"ADMIN_TOKEN" validate:"omitempty,min=16"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
	LogFile   string `env:"LOG_FILE"`
}

// IsProduction reports whether the site runs in production mode.
func (c *Config) IsProduction() bool { return c.Environment == "production" }

// Load reads a .env file when present, then the environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
		if name := os.Getenv("ENV"); name != "" {
			envFiles = append([]string{".env." + name}, envFiles...)
		}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every offending variable.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
