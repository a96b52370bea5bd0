package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"time"

	"github.com/alkime/practice/internal/keyring"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"

	// Prefix is prepended to every environment variable name.
	Prefix = "practice"
)

// Config holds all application configuration.
type Config struct {
	Env string `envconfig:"ENV" default:"development"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Session defaults, overridden by CLI flags
	Song       string `envconfig:"SONG"`
	User       string `envconfig:"USER"`
	Visualizer string `envconfig:"VISUALIZER" default:"waveform"`

	// SeekSeconds is the rewind/forward step; 0 hides the controls.
	SeekSeconds int `envconfig:"SEEK_SECONDS" default:"5"`
	SampleRate  int `envconfig:"SAMPLE_RATE" default:"44100"`

	Storage StorageConfig `envconfig:"STORAGE"`
	DB      DBConfig      `envconfig:"DB"`
	Queue   QueueConfig   `envconfig:"QUEUE"`

	// Server settings
	Port           string   `envconfig:"PORT" default:"8080"`
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:"10.0.0.0/8,172.16.0.0/12"`
	HSTSMaxAge     int      `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode        string   `envconfig:"CSP_MODE" default:"relaxed"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend string `envconfig:"BACKEND" default:"local"`
	Bucket  string `envconfig:"BUCKET" default:"audios"`

	// Local backend
	Root string `envconfig:"ROOT"`

	// Minio backend
	Endpoint  string `envconfig:"ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
	Region    string `envconfig:"REGION"`
	UseSSL    bool   `envconfig:"USE_SSL" default:"false"`

	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:8080/media"`
}

// DBConfig locates the audios table.
type DBConfig struct {
	DSN      string `envconfig:"DSN"`
	Host     string `envconfig:"HOST" default:"127.0.0.1"`
	Port     int    `envconfig:"PORT" default:"3306"`
	User     string `envconfig:"USER" default:"practice"`
	Password string `envconfig:"PASSWORD"`
	Name     string `envconfig:"NAME" default:"practice"`

	SongColumns []string `envconfig:"SONG_COLUMNS" default:"relational_song_id,song_id,cancion_id"`
	Debug       bool     `envconfig:"DEBUG" default:"false"`
}

// QueueConfig selects the pending store and the retry policy.
type QueueConfig struct {
	Backend string `envconfig:"BACKEND" default:"file"`
	File    string `envconfig:"FILE"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `envconfig:"INITIAL_DELAY" default:"3s"`
	Multiplier   float64       `envconfig:"MULTIPLIER" default:"1.5"`
	MaxDelay     time.Duration `envconfig:"MAX_DELAY" default:"30s"`
}

// LoadConfig loads configuration from .env file and environment variables,
// then fills empty secrets from the system keychain.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		// Not an error if file doesn't exist (expected in production)
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	cfg.ResolveSecrets(keyring.Lookup)

	return cfg, nil
}

// FromEnv parses the environment without touching .env or the keychain.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &cfg, nil
}

// ResolveSecrets fills each empty secret from lookup. Values set in the
// environment win.
func (c *Config) ResolveSecrets(lookup func(keyring.Secret) string) {
	fill := func(dst *string, s keyring.Secret) {
		if *dst == "" {
			*dst = lookup(s)
		}
	}

	fill(&c.Storage.AccessKey, keyring.StorageAccessKey)
	fill(&c.Storage.SecretKey, keyring.StorageSecretKey)
	fill(&c.DB.Password, keyring.DBPassword)
	fill(&c.Queue.RedisPassword, keyring.RedisPassword)
}

// Validate checks enums and numeric ranges.
func (c *Config) Validate() error {
	var errs []error

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains([]string{"waveform", "slider"}, c.Visualizer),
		"visualizer must be waveform or slider, got %q", c.Visualizer)
	check(slices.Contains([]string{"local", "minio"}, c.Storage.Backend),
		"storage backend must be local or minio, got %q", c.Storage.Backend)
	check(slices.Contains([]string{"file", "redis"}, c.Queue.Backend),
		"queue backend must be file or redis, got %q", c.Queue.Backend)
	check(slices.Contains([]string{"relaxed", "strict"}, c.CSPMode),
		"csp mode must be relaxed or strict, got %q", c.CSPMode)
	check(c.Storage.Bucket != "", "storage bucket is required")
	check(c.SeekSeconds >= 0, "seek seconds cannot be negative")
	check(c.SampleRate > 0, "sample rate must be positive")
	check(len(c.DB.SongColumns) > 0, "at least one song column is required")
	check(c.Queue.MaxAttempts > 0, "queue max attempts must be positive")
	check(c.Queue.InitialDelay > 0, "queue initial delay must be positive")
	check(c.Queue.MaxDelay >= c.Queue.InitialDelay, "queue max delay must not be below the initial delay")
	check(c.Queue.Multiplier >= 1, "queue multiplier must be at least 1")

	return errors.Join(errs...)
}

// SeekStep is the seek offset as a duration.
func (c *Config) SeekStep() time.Duration {
	return time.Duration(c.SeekSeconds) * time.Second
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == "strict" {
		// Production CSP
		return "default-src 'self'; " +
			"media-src 'self' blob:; " +
			"object-src 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
	}

	// Development/relaxed CSP
	return "default-src 'self'; " +
		"media-src 'self' blob: data:; " +
		"img-src 'self' data:"
}
