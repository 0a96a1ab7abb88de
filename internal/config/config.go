package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider, falls back to OPENAI_API_KEY (required by translate)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name to use (default: gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens per translation (default: 500)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Per-attempt request timeout in seconds (default: 15)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// File Configuration:
// - QUOTES_FILE: Quote collection (default: assets/quotes.json)
// - TRANSLATIONS_FILE: Output file (default: assets/quotes_translations.json)
// - PROGRESS_FILE: Progress file (default: assets/translation_progress.txt)
// - JOURNAL_DB: SQLite run journal, disabled when empty
// - ICON_FILE: Icon checked by the icon command (default: assets/icon/app_icon.png)
//
// Translate Configuration:
// - TARGET_LANGUAGES: Comma separated code[:Name] list (default: ko,ja,zh,es,fr,pt)
// - LANGUAGES_FILE: YAML language list, overrides TARGET_LANGUAGES
// - TRANSLATE_CONCURRENCY: In-flight requests (default: 20)
// - TRANSLATE_MAX_ATTEMPTS: Attempts per task (default: 3)
// - TRANSLATE_RETRY_DELAY_MS: Delay after a non rate-limit failure (default: 500)
// - TRANSLATE_RATE_LIMIT: Requests per second, 0 disables (default: 0)
//
// System Configuration:
// - LOG_LEVEL: debug, info, warn, error (default: info)
type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm"`

	// File Configuration
	Files FilesConfig `json:"files"`

	// Translate Configuration
	Translate TranslateConfig `json:"translate"`

	// System Configuration
	System SystemConfig `json:"system"`
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI compatible provider
type LLMConfig struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

type FilesConfig struct {
	QuotesFile       string `json:"quotes_file"`
	TranslationsFile string `json:"translations_file"`
	ProgressFile     string `json:"progress_file"`
	JournalDB        string `json:"journal_db"`
	IconFile         string `json:"icon_file"`
}

type TranslateConfig struct {
	Languages   []quote.Language `json:"languages"`
	Concurrency int              `json:"concurrency"`
	MaxAttempts int              `json:"max_attempts"`
	RetryDelay  time.Duration    `json:"retry_delay"`
	RateLimit   float64          `json:"rate_limit"`
}

type SystemConfig struct {
	LogLevel string `json:"log_level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	languages, err := languagesFromEnv()
	if err != nil {
		return nil, err
	}

	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", getEnvString("OPENAI_API_KEY", "")),
			APIURL:      getEnvString("LLM_API_URL", "https://api.openai.com/v1"),
			Model:       getEnvString("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 500),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 15),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Files: FilesConfig{
			QuotesFile:       getEnvString("QUOTES_FILE", "assets/quotes.json"),
			TranslationsFile: getEnvString("TRANSLATIONS_FILE", "assets/quotes_translations.json"),
			ProgressFile:     getEnvString("PROGRESS_FILE", "assets/translation_progress.txt"),
			JournalDB:        getEnvString("JOURNAL_DB", ""),
			IconFile:         getEnvString("ICON_FILE", "assets/icon/app_icon.png"),
		},
		Translate: TranslateConfig{
			Languages:   languages,
			Concurrency: getEnvInt("TRANSLATE_CONCURRENCY", 20),
			MaxAttempts: getEnvInt("TRANSLATE_MAX_ATTEMPTS", 3),
			RetryDelay:  time.Duration(getEnvInt("TRANSLATE_RETRY_DELAY_MS", 500)) * time.Millisecond,
			RateLimit:   getEnvFloat("TRANSLATE_RATE_LIMIT", 0),
		},
		System: SystemConfig{
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: model=%s url=%s languages=%d concurrency=%d attempts=%d",
		config.LLM.Model, config.LLM.APIURL, len(config.Translate.Languages),
		config.Translate.Concurrency, config.Translate.MaxAttempts)

	return config, nil
}

// validate checks the settings every command relies on
func (c *Config) validate() error {
	if c.Translate.Concurrency < 1 {
		return fmt.Errorf("TRANSLATE_CONCURRENCY must be greater than 0")
	}
	if c.Translate.MaxAttempts < 1 {
		return fmt.Errorf("TRANSLATE_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Translate.RetryDelay < 0 {
		return fmt.Errorf("TRANSLATE_RETRY_DELAY_MS must not be negative")
	}
	if c.Translate.RateLimit < 0 {
		return fmt.Errorf("TRANSLATE_RATE_LIMIT must not be negative")
	}
	return validateLanguages(c.Translate.Languages)
}

// ValidateTranslate checks the preconditions of a translation run. It must
// pass before any request is issued.
func (c *Config) ValidateTranslate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("LLM_API_KEY (or OPENAI_API_KEY) is required")
	}
	if strings.TrimSpace(c.Files.QuotesFile) == "" {
		return fmt.Errorf("QUOTES_FILE is required")
	}
	if strings.TrimSpace(c.Files.TranslationsFile) == "" {
		return fmt.Errorf("TRANSLATIONS_FILE is required")
	}
	if strings.TrimSpace(c.Files.ProgressFile) == "" {
		return fmt.Errorf("PROGRESS_FILE is required")
	}
	return c.validate()
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// LogLevelFromEnv returns LOG_LEVEL, "info" when unset.
func LogLevelFromEnv() string {
	return getEnvString("LOG_LEVEL", "info")
}
