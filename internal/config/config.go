package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when no completion credential is configured.
var ErrMissingAPIKey = errors.New("DEEPSEEK_API_KEY is not set")

// Config stores runtime configuration loaded from a YAML file and environment variables.
type Config struct {
	APIKey          string        `yaml:"-"`
	APIEndpoint     string        `yaml:"api_endpoint"`
	Model           string        `yaml:"model"`
	UploadDir       string        `yaml:"upload_dir"`
	ResultsDir      string        `yaml:"results_dir"`
	MaxQuestions    int           `yaml:"max_questions"`
	RenderOnFailure bool          `yaml:"render_on_failure"`
	RequestTimeout  time.Duration `yaml:"completion_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Port            string        `yaml:"port"`
}

func Default() Config {
	return Config{
		APIEndpoint:    "https://api.deepseek.com/v1",
		Model:          "deepseek-chat",
		UploadDir:      "uploads",
		ResultsDir:     "results",
		MaxQuestions:   50,
		RequestTimeout: 2 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "console",
		Port:           "8080",
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (or MCQGEN_CONFIG), then environment variables. The API key is only
// ever read from the environment.
func Load(path string) (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("MCQGEN_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	c.APIEndpoint = getEnv("DEEPSEEK_API_ENDPOINT", c.APIEndpoint)
	c.Model = getEnv("DEEPSEEK_MODEL", c.Model)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.ResultsDir = getEnv("RESULTS_DIR", c.ResultsDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Port = getEnv("PORT", c.Port)

	if val, ok := lookupEnv("MAX_QUESTIONS"); ok {
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fmt.Errorf("MAX_QUESTIONS must be a non-negative integer, got %q", val)
		}
		c.MaxQuestions = n
	}
	if val, ok := lookupEnv("RENDER_ON_FAILURE"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("RENDER_ON_FAILURE must be a boolean, got %q", val)
		}
		c.RenderOnFailure = b
	}
	if val, ok := lookupEnv("COMPLETION_TIMEOUT"); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("COMPLETION_TIMEOUT must be a duration, got %q", val)
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate reports configuration that makes the pipeline unusable.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.APIEndpoint == "" {
		return errors.New("api endpoint must not be empty")
	}
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	return nil
}

// EnsureDirs creates the uploads and results directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := lookupEnv(key); ok {
		return val
	}
	return fallback
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val, true
	}
	return "", false
}
