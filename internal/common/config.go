package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Input  InputConfig
	OCR    OCRConfig
	Hosted HostedConfig
	Ledger LedgerConfig
}

// InputConfig holds the batch source/destination configuration
type InputConfig struct {
	PDFDir  string
	SaveDir string
	Profile string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractBin     string
	PDFImagesBin     string
	Lang             string
	TessdataDir      string
	ArtifactCacheDir string
	Timeout          time.Duration
}

// HostedConfig holds configuration for the hosted extraction service
type HostedConfig struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// LedgerConfig holds processed-file ledger configuration
type LedgerConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// LoadDotEnv loads variables from a .env file without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return WrapError(err, "load "+path)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Input: InputConfig{
			PDFDir:  getEnv("INVOICE_PDF_DIR", "data"),
			SaveDir: getEnv("INVOICE_SAVE_DIR", "output"),
			Profile: getEnv("INVOICE_PROFILE", "itemized"),
		},
		OCR: OCRConfig{
			TesseractBin:     getEnv("OCR_TESSERACT_BIN", "tesseract"),
			PDFImagesBin:     getEnv("OCR_PDFIMAGES_BIN", "pdfimages"),
			Lang:             getEnv("OCR_LANG", "eng"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", ""),
			Timeout:          getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
		},
		Hosted: HostedConfig{
			Enabled:      getEnvAsBool("USE_LLAMA", false),
			APIKey:       getEnv("LLAMA_CLOUD_API_KEY", ""),
			BaseURL:      getEnv("LLAMA_CLOUD_BASE_URL", "https://api.cloud.llamaindex.ai"),
			Timeout:      getEnvAsDuration("LLAMA_CLOUD_TIMEOUT", 60*time.Second),
			PollInterval: getEnvAsDuration("LLAMA_CLOUD_POLL_INTERVAL", 2*time.Second),
			MaxPolls:     getEnvAsInt("LLAMA_CLOUD_MAX_POLLS", 150),
		},
		Ledger: LedgerConfig{
			DSN:             getEnv("LEDGER_DSN", ""),
			MaxConns:        getEnvAsInt32("LEDGER_MAX_CONNS", 4),
			MinConns:        getEnvAsInt32("LEDGER_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("LEDGER_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("LEDGER_DIAL_TIMEOUT", 3*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration after flags have been applied.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("pdf_dir", c.Input.PDFDir, Required).
		Field("save_dir", c.Input.SaveDir, Required).
		Field("ocr.lang", c.OCR.Lang, Required)
	if c.Hosted.Enabled {
		v.Field("LLAMA_CLOUD_API_KEY", c.Hosted.APIKey, Required).
			Field("LLAMA_CLOUD_BASE_URL", c.Hosted.BaseURL, Required, URL).
			Field("LLAMA_CLOUD_MAX_POLLS", c.Hosted.MaxPolls, Positive)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}
