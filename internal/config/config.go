package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
)

// Formatter providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds the application configuration.
type Config struct {
	EnvVars EnvVars  `json:"env"`
	Prompts *Prompts `json:"-"`
}

// EnvVars holds environment variables required by the application.
// Fields tagged `optional:"true"` are skipped by CheckConfigEnvFields.
type EnvVars struct {
	Port               string `env:"PORT" envDefault:"8080"`
	DatabaseUrl        string `env:"DATABASE_URL"`
	JwtSecretKey       string `env:"JWT_SECRET_KEY"`
	AWSRegion          string `env:"AWS_REGION"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" optional:"true"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" optional:"true"`
	S3Bucket           string `env:"S3_BUCKET"`
	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY" optional:"true"`
	FormatterProvider  string `env:"FORMATTER_PROVIDER" envDefault:"anthropic"`
	GoogleSearchKey    string `env:"GOOGLE_SEARCH_KEY" optional:"true"`
	GoogleSearchCX     string `env:"GOOGLE_SEARCH_CX" optional:"true"`
	BraveSearchKey     string `env:"BRAVE_SEARCH_KEY" optional:"true"`
	RedisURL           string `env:"REDIS_URL" optional:"true"`
	Development        bool   `env:"DEVELOPMENT" optional:"true"`

	SearchDenylist       []string      `env:"SEARCH_DENYLIST" envSeparator:"," envDefault:"pinterest.com,facebook.com,instagram.com,tiktok.com,youtube.com,reddit.com,quora.com" optional:"true"`
	MaxCandidates        int           `env:"MAX_CANDIDATES" envDefault:"5"`
	SearchTimeout        time.Duration `env:"SEARCH_TIMEOUT" envDefault:"10s"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" envDefault:"20s"`
	FetchRetries         int           `env:"FETCH_RETRIES" envDefault:"2" optional:"true"`
	FormatTimeout        time.Duration `env:"FORMAT_TIMEOUT" envDefault:"60s"`
	ResolveTimeout       time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"120s"`
	ResolveRatePerMinute int           `env:"RESOLVE_RATE_PER_MINUTE" envDefault:"6"`
}

// LoadConfig parses environment variables into the Config struct.
func LoadConfig() (*Config, error) {
	var config Config
	if err := env.Parse(&config.EnvVars); err != nil {
		return nil, err
	}
	return &config, nil
}

// CheckConfigEnvFields validates that all required EnvVars fields are set
// and that the formatter provider has its key.
func (c *Config) CheckConfigEnvFields() error {
	if err := checkFieldsRecursive(reflect.ValueOf(c.EnvVars)); err != nil {
		return err
	}
	switch c.EnvVars.FormatterProvider {
	case ProviderAnthropic:
	case ProviderOpenAI:
		if c.EnvVars.OpenAIAPIKey == "" {
			return fmt.Errorf("$OpenAIAPIKey must be set when $FormatterProvider is %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("$FormatterProvider must be %q or %q, got %q", ProviderAnthropic, ProviderOpenAI, c.EnvVars.FormatterProvider)
	}
	if c.EnvVars.FetchRetries < 0 || c.EnvVars.FetchRetries > 2 {
		return fmt.Errorf("$FetchRetries must be between 0 and 2, got %d", c.EnvVars.FetchRetries)
	}
	return nil
}

func checkFieldsRecursive(v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := v.Type().Field(i)
		if fieldType.Tag.Get("optional") == "true" {
			continue
		}
		if field.IsZero() {
			return fmt.Errorf("$%s must be set", fieldType.Name)
		}
		if field.Kind() == reflect.Struct {
			if err := checkFieldsRecursive(field); err != nil {
				return err
			}
		}
	}
	return nil
}
