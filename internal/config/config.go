package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MalithGihan/codediagram-service/internal/credential"
	"github.com/MalithGihan/codediagram-service/internal/diagram"
)

// ConfigPath is read when neither an explicit path nor CODEDIAGRAM_CONFIG is set.
const ConfigPath = "config.yaml"

// Config is loaded from YAML and then overridden by environment variables.
type Config struct {
	// Host defaults to loopback; the credential endpoints have no auth.
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	APIURL         string `yaml:"apiURL"`
	Model          string `yaml:"model"`
	MaxAttempts    int    `yaml:"maxAttempts"`
	RetryDelayMS   int    `yaml:"retryDelayMs"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`

	SecretBackend string `yaml:"secretBackend"` // file|redis|memory
	SecretDir     string `yaml:"secretDir"`
	SecretKeyName string `yaml:"secretKeyName"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// APIKey seeds the secret store at startup when set. Usually env-only.
	APIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           "8081",
		LogLevel:       "info",
		APIURL:         diagram.DefaultEndpoint,
		Model:          diagram.DefaultModel,
		MaxAttempts:    diagram.DefaultMaxAttempts,
		TimeoutSeconds: 90,
		SecretBackend:  "file",
		SecretDir:      "./secrets",
		SecretKeyName:  credential.DefaultKeyName,
	}
}

// Load reads .env (if present), then the YAML file at path (optional), then
// environment overrides. An empty path falls back to CODEDIAGRAM_CONFIG and
// then ConfigPath; a missing file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path == "" {
		path = getenv("CODEDIAGRAM_CONFIG", ConfigPath)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, c.Port) }

func (c Config) Timeout() time.Duration    { return time.Duration(c.TimeoutSeconds) * time.Second }
func (c Config) RetryDelay() time.Duration { return time.Duration(c.RetryDelayMS) * time.Millisecond }

func applyEnv(cfg *Config) error {
	setString(&cfg.Host, "CODEDIAGRAM_HOST")
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.APIURL, "DIAGRAM_API_URL")
	setString(&cfg.Model, "DIAGRAM_MODEL")
	setString(&cfg.SecretBackend, "SECRET_BACKEND")
	setString(&cfg.SecretDir, "SECRET_DIR")
	setString(&cfg.SecretKeyName, "SECRET_KEY_NAME")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.APIKey, "DIAGRAM_API_KEY")

	if err := setInt(&cfg.MaxAttempts, "DIAGRAM_MAX_ATTEMPTS"); err != nil {
		return err
	}
	if err := setInt(&cfg.RetryDelayMS, "DIAGRAM_RETRY_DELAY_MS"); err != nil {
		return err
	}
	return setInt(&cfg.TimeoutSeconds, "DIAGRAM_TIMEOUT_SECONDS")
}

func validateConfig(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if cfg.APIURL == "" {
		return errors.New("config: apiURL is required (set in config.yaml or DIAGRAM_API_URL)")
	}
	if cfg.Model == "" {
		return errors.New("config: model is required (set in config.yaml or DIAGRAM_MODEL)")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("config: maxAttempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelayMS < 0 {
		return fmt.Errorf("config: retryDelayMs must not be negative, got %d", cfg.RetryDelayMS)
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("config: timeoutSeconds must be at least 1, got %d", cfg.TimeoutSeconds)
	}
	if cfg.SecretKeyName == "" {
		return errors.New("config: secretKeyName is required")
	}
	switch cfg.SecretBackend {
	case "file":
		if cfg.SecretDir == "" {
			return errors.New("config: secretDir is required for the file backend")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis backend (or REDIS_ADDR)")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown secretBackend %q (want file, redis or memory)", cfg.SecretBackend)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}
