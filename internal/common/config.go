package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Storage    StorageConfig
	OCR        OCRConfig
	Normalizer NormalizerConfig
	RecordAPI  RecordAPIConfig
	Worker     WorkerConfig
	Retry      RetryConfig
	Validator  ValidatorConfig
}

// StorageConfig holds object-store configuration
type StorageConfig struct {
	Region       string
	Endpoint     string
	LockPrefix   string
	MaxBlobBytes int64
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract string
	Language  string
	PSM       int
}

// NormalizerConfig holds external-normalizer (LLM) configuration
type NormalizerConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// RecordAPIConfig holds receipt-record API configuration
type RecordAPIConfig struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	SupportsReplaceAll bool
}

// WorkerConfig holds the parse worker pool configuration
type WorkerConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// RetryConfig holds bounded-retry defaults for network-facing steps
type RetryConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffStep    time.Duration
}

// ValidatorConfig holds tolerances for normalized-receipt validation
type ValidatorConfig struct {
	// DiscountTolerance is the maximum implied discount as a share of the
	// raw items sum before a low printed subtotal is rejected.
	DiscountTolerance float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Region:       getEnv("AWS_REGION", "us-east-1"),
			Endpoint:     getEnv("S3_ENDPOINT", ""),
			LockPrefix:   getEnv("LOCK_PREFIX", "locks"),
			MaxBlobBytes: getEnvAsInt64("MAX_BLOB_BYTES", 50<<20),
		},
		OCR: OCRConfig{
			Tesseract: getEnv("TESSERACT_BIN", "tesseract"),
			Language:  getEnv("TESSERACT_LANG", "eng"),
			PSM:       getEnvAsInt("TESSERACT_PSM", 6),
		},
		Normalizer: NormalizerConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		RecordAPI: RecordAPIConfig{
			BaseURL:            getEnv("RECORD_API_URL", ""),
			APIKey:             getEnv("RECORD_API_KEY", ""),
			Timeout:            getEnvAsDuration("RECORD_API_TIMEOUT", 30*time.Second),
			SupportsReplaceAll: getEnvAsBool("RECORD_API_REPLACE_ITEMS", false),
		},
		Worker: WorkerConfig{
			Workers:    getEnvAsInt("WORKERS", 4),
			QueueSize:  getEnvAsInt("QUEUE_SIZE", 256),
			JobTimeout: getEnvAsDuration("JOB_TIMEOUT", 3*time.Minute),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			AttemptTimeout: getEnvAsDuration("RETRY_ATTEMPT_TIMEOUT", 30*time.Second),
			BackoffStep:    getEnvAsDuration("RETRY_BACKOFF_STEP", 500*time.Millisecond),
		},
		Validator: ValidatorConfig{
			DiscountTolerance: getEnvAsFloat64("DISCOUNT_TOLERANCE", 0.60),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.RecordAPI.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "RECORD_API_URL is required", ErrInvalidInput)
	}
	if c.Normalizer.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Storage.MaxBlobBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_BLOB_BYTES must be positive", ErrInvalidInput)
	}
	if c.Validator.DiscountTolerance <= 0 || c.Validator.DiscountTolerance >= 1 {
		return NewAppError("CONFIG_ERROR", "DISCOUNT_TOLERANCE must be in (0,1)", ErrInvalidInput)
	}
	return nil
}
