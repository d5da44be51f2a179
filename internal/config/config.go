package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	EnvVars EnvVars  `json:"env"`
	Prompts *Prompts `json:"-"`
}

// EnvVars holds environment variables required by the application.
// Fields tagged `optional:"true"` are skipped by CheckConfigEnvFields.
type EnvVars struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabaseUrl  string `env:"DATABASE_URL"`
	RedisUrl     string `env:"REDIS_URL" optional:"true"`
	JwtSecretKey string `env:"JWT_SECRET_KEY"`
	PublicURL    string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	FrontendURL  string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	AWSRegion          string `env:"AWS_REGION"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" optional:"true"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" optional:"true"`
	S3Bucket           string `env:"S3_BUCKET"`

	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY" optional:"true"`

	GoogleSearchKey string `env:"GOOGLE_SEARCH_KEY" optional:"true"`
	GoogleSearchCX  string `env:"GOOGLE_SEARCH_CX" optional:"true"`
	BraveSearchKey  string `env:"BRAVE_SEARCH_KEY" optional:"true"`
	NewsAPIKey      string `env:"NEWS_API_KEY" optional:"true"`
	YelpAPIKey      string `env:"YELP_API_KEY" optional:"true"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID" optional:"true"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" optional:"true"`
	FitbitClientID     string `env:"FITBIT_CLIENT_ID" optional:"true"`
	FitbitClientSecret string `env:"FITBIT_CLIENT_SECRET" optional:"true"`

	ReminderSchedule string        `env:"REMINDER_SCHEDULE" envDefault:"@every 5m"`
	ReminderWindow   time.Duration `env:"REMINDER_WINDOW" envDefault:"1h"`
	VoiceRateLimit   int           `env:"VOICE_RATE_LIMIT" envDefault:"5"`
}

// LoadConfig parses environment variables into the Config struct. A .env file
// in the working directory is loaded first when present; variables already set
// in the environment win.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var config Config
	if err := env.Parse(&config.EnvVars); err != nil {
		return nil, err
	}
	return &config, nil
}

// CheckConfigEnvFields validates that all required EnvVars fields are set.
func (c *Config) CheckConfigEnvFields() error {
	return checkFieldsRecursive(reflect.ValueOf(c.EnvVars))
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
		if isZeroValue(field) {
			return fmt.Errorf("$%s must be set", fieldType.Tag.Get("env"))
		}
		if field.Kind() == reflect.Struct {
			if err := checkFieldsRecursive(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func isZeroValue(v reflect.Value) bool {
	return v.Interface() == reflect.Zero(v.Type()).Interface()
}

// GoogleOAuthEnabled reports whether Google calendar and mail can be connected.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.EnvVars.GoogleClientID != "" && c.EnvVars.GoogleClientSecret != ""
}

// FitbitOAuthEnabled reports whether Fitbit can be connected.
func (c *Config) FitbitOAuthEnabled() bool {
	return c.EnvVars.FitbitClientID != "" && c.EnvVars.FitbitClientSecret != ""
}
