package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/sigweihq/waas-connector/pkg/constants"
)

// EnvPrefix is the prefix for environment overrides (e.g., WAAS_PROJECT_ACCESS_KEY)
const EnvPrefix = "WAAS"

// Config holds the connector construction parameters.
// It is read-only once a connector has been created from it.
type Config struct {
	ProjectAccessKey string `mapstructure:"project_access_key" validate:"required"`
	WalletURL        string `mapstructure:"wallet_url" validate:"required,url"`
	ChainID          uint64 `mapstructure:"chain_id" validate:"gt=0"`
	IsDev            bool   `mapstructure:"is_dev"`
}

// NodesURL returns the node gateway base URL for the configured environment
func (c *Config) NodesURL() string {
	if c.IsDev {
		return constants.DevNodesURL
	}
	return constants.NodesURL
}

// Validate checks that all required parameters are present and well formed
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldErr.Field(), msgForFieldError(fieldErr)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Load reads the config from an optional file and WAAS_* environment variables.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	v.SetDefault("project_access_key", "")
	v.SetDefault("wallet_url", "")
	v.SetDefault("chain_id", 0)
	v.SetDefault("is_dev", false)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func msgForFieldError(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fieldError.Value())
	case "gt":
		return fmt.Sprintf("should be greater than %s", fieldError.Param())
	default:
		return "invalid value"
	}
}
