package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Pipeline       PipelineConfig
	LLM            LLMConfig
	OCR            OCRConfig
	Database       DatabaseConfig
	Server         ServerConfig
	DictionaryPath string
	LogFormat      string
	LogLevel       string
}

// PipelineConfig holds thresholds, budgets and stage flags of the extraction pipeline
type PipelineConfig struct {
	SchemaScoreThreshold      float64
	ValidRowsThreshold        float64
	HeaderConfidenceThreshold float64

	BatchSizeAmbiguousRows int
	ChunkSizeBytes         int
	ChunkOverlapBytes      int
	MaxTextBytes           int
	MaxRetries             int
	MaxConcurrency         int
	HeaderSamples          int

	TargetedEnabled   bool
	ExtractionEnabled bool
	OCREnabled        bool
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider            string
	APIKey              string
	GeminiAPIKey        string
	BaseURL             string
	ModelTargeted       string
	ModelExtract        string
	GeminiModelTargeted string
	GeminiModelExtract  string
	MaxTokensStage2     int
	MaxTokensStage3     int
	Temperature         float32
	Timeout             time.Duration
	RequestsInterval    time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractBin  string
	PdftoppmBin   string
	PdftotextBin  string
	Language      string
	TessdataDir   string
	DPI           int
	MaxPages      int
	UseTextLayer  bool
	TSVConfidence bool
	Timeout       time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SchemaScoreThreshold:      getEnvAsFloat64("SCHEMA_SCORE_TH", 0.7),
			ValidRowsThreshold:        getEnvAsFloat64("MIN_VALID_ROWS", 0.6),
			HeaderConfidenceThreshold: getEnvAsFloat64("HEADER_CONFIDENCE_TH", 0.75),
			BatchSizeAmbiguousRows:    getEnvAsInt("BATCH_SIZE_AMBIGUOUS_ROWS", 20),
			ChunkSizeBytes:            getEnvAsInt("LLM_CHUNK_SIZE", 40*1024),
			ChunkOverlapBytes:         getEnvAsInt("LLM_CHUNK_OVERLAP", 1000),
			MaxTextBytes:              getEnvAsInt("LLM_MAX_TEXT_BYTES", 80*1024),
			MaxRetries:                getEnvAsInt("LLM_MAX_RETRIES", 2),
			MaxConcurrency:            getEnvAsInt("LLM_MAX_CONCURRENCY", 4),
			HeaderSamples:             getEnvAsInt("HEADER_SAMPLE_VALUES", 5),
			TargetedEnabled:           getEnvAsBool("IA_TARGETED_ENABLED", true),
			ExtractionEnabled:         getEnvAsBool("LLM_FALLBACK_ENABLED", true),
			OCREnabled:                getEnvAsBool("OCR_ENABLED", true),
		},
		LLM: LLMConfig{
			Provider:            strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
			BaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ModelTargeted:       getEnv("LLM_MODEL_TARGETED", "gpt-4o-mini"),
			ModelExtract:        getEnv("LLM_MODEL_EXTRACT", "gpt-4o"),
			GeminiModelTargeted: getEnv("GEMINI_MODEL_TARGETED", "gemini-2.5-flash"),
			GeminiModelExtract:  getEnv("GEMINI_MODEL_EXTRACT", "gemini-2.5-pro"),
			MaxTokensStage2:     getEnvAsInt("MAX_LLM_TOKENS_STAGE2", 1500),
			MaxTokensStage3:     getEnvAsInt("MAX_LLM_TOKENS_STAGE3", 4000),
			Temperature:         getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:             getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			RequestsInterval:    getEnvAsDuration("LLM_REQUEST_INTERVAL", 200*time.Millisecond),
		},
		OCR: OCRConfig{
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			PdftoppmBin:   getEnv("PDFTOPPM_BIN", "pdftoppm"),
			PdftotextBin:  getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Language:      getEnv("OCR_LANG", "ita+eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 20),
			UseTextLayer:  getEnvAsBool("OCR_USE_TEXT_LAYER", false),
			TSVConfidence: getEnvAsBool("OCR_TSV_CONFIDENCE", false),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		DictionaryPath: getEnv("DICTIONARY_PATH", ""),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// ClampedConcurrency returns MaxConcurrency bounded to [1, 5].
func (p PipelineConfig) ClampedConcurrency() int {
	switch {
	case p.MaxConcurrency < 1:
		return 1
	case p.MaxConcurrency > 5:
		return 5
	default:
		return p.MaxConcurrency
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

// Validate checks ranges and provider requirements. The database and server
// sections are validated by the binaries that need them.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("SCHEMA_SCORE_TH", c.Pipeline.SchemaScoreThreshold, UnitInterval)
	v.Field("MIN_VALID_ROWS", c.Pipeline.ValidRowsThreshold, UnitInterval)
	v.Field("HEADER_CONFIDENCE_TH", c.Pipeline.HeaderConfidenceThreshold, UnitInterval)
	v.Field("BATCH_SIZE_AMBIGUOUS_ROWS", c.Pipeline.BatchSizeAmbiguousRows, Positive)
	v.Field("LLM_CHUNK_SIZE", c.Pipeline.ChunkSizeBytes, Positive)
	v.Field("LLM_MAX_TEXT_BYTES", c.Pipeline.MaxTextBytes, Positive)
	v.Field("LLM_MAX_RETRIES", c.Pipeline.MaxRetries, NonNegative)
	v.Field("LLM_CHUNK_OVERLAP", c.Pipeline.ChunkOverlapBytes, NonNegative)
	v.Field("MAX_LLM_TOKENS_STAGE2", c.LLM.MaxTokensStage2, Positive)
	v.Field("MAX_LLM_TOKENS_STAGE3", c.LLM.MaxTokensStage3, Positive)
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf("openai", "gemini"))
	if c.Pipeline.ChunkOverlapBytes >= c.Pipeline.ChunkSizeBytes {
		v.Field("LLM_CHUNK_OVERLAP", c.Pipeline.ChunkOverlapBytes, func(name string, value interface{}) *ValidationError {
			return &ValidationError{Field: name, Value: value, Message: "must be smaller than LLM_CHUNK_SIZE"}
		})
	}
	if err := v.Error(); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", WrapError(ErrInvalidInput, err.Error()))
	}
	return nil
}

// RequireLLM reports a config error when the selected provider has no API key.
func (c *Config) RequireLLM() error {
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	default:
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	}
	return nil
}

// RequireDatabase reports a config error when no DSN is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return nil
}
