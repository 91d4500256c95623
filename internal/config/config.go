package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// Records
	DBDriver    string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	// Storage
	StorageProvider string
	StorageRootDir  string
	PresignTTL      time.Duration

	// S3
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3Region          string
	S3UseSSL          bool

	// GCS
	GCSBucketName      string
	GCSCredentialsFile string

	// OCR
	OCREngine     string
	OCRLanguages  []string
	OCRServiceURL string
	OCRTimeout    time.Duration

	// Conversion
	TempDir        string
	PDFToImageDPI  int
	PdftoppmPath   string
	ThumbnailSize  int
	ImageQuality   int
	ConvertTimeout time.Duration
	PageWorkers    int

	// Analyzer
	AnalyzerProvider string
	AIAPIBaseURL     string
	AIAPIKey         string
	AIModel          string
	GeminiAPIKey     string
	AnalyzerRPM      int

	// Upload limits
	MaxFileSize      int64
	UploadRatePerMin int
}

func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", "data/forensic_docs.db"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "forensic_docs"),

		StorageProvider: strings.ToLower(getEnv("STORAGE_PROVIDER", "local")),
		StorageRootDir:  getEnv("STORAGE_ROOT_DIR", "storage"),
		PresignTTL:      getEnvDuration("PRESIGN_TTL", time.Hour),

		S3Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:      getEnv("S3_BUCKET_NAME", "forensic-docs"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3UseSSL:          getEnvBool("S3_USE_SSL", false),

		GCSBucketName:      getEnv("GCS_BUCKET_NAME", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),

		OCREngine:     strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		OCRLanguages:  splitList(getEnv("OCR_LANG", "eng")),
		OCRServiceURL: getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRTimeout:    getEnvDuration("OCR_TIMEOUT", 2*time.Minute),

		TempDir:        getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "forensic-docs")),
		PDFToImageDPI:  getEnvInt("PDF_TO_IMAGE_DPI", 300),
		PdftoppmPath:   getEnv("PDFTOPPM_PATH", "pdftoppm"),
		ThumbnailSize:  getEnvInt("THUMBNAIL_SIZE", 200),
		ImageQuality:   getEnvInt("IMAGE_QUALITY", 85),
		ConvertTimeout: getEnvDuration("CONVERT_TIMEOUT", 5*time.Minute),
		PageWorkers:    getEnvInt("PAGE_WORKERS", 4),

		AnalyzerProvider: strings.ToLower(getEnv("ANALYZER_PROVIDER", "openai")),
		AIAPIBaseURL:     getEnv("AI_API_BASE_URL", "http://localhost:5000/v1"),
		AIAPIKey:         getEnv("AI_API_KEY", "not-needed"),
		AIModel:          getEnv("AI_MODEL", "any-model"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		AnalyzerRPM:      getEnvInt("ANALYZER_RPM", 30),

		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 100*1024*1024),
		UploadRatePerMin: getEnvInt("UPLOAD_RATE_PER_MIN", 60),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected backends are known and have what they need.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.StorageProvider {
	case "local", "s3":
	case "gcs":
		if c.GCSBucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required for the gcs storage provider")
		}
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", c.StorageProvider)
	}

	switch c.OCREngine {
	case "tesseract", "paddle":
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q", c.OCREngine)
	}
	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANG must name at least one language")
	}

	switch c.AnalyzerProvider {
	case "openai", "none":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini analyzer")
		}
	default:
		return fmt.Errorf("unknown ANALYZER_PROVIDER %q", c.AnalyzerProvider)
	}

	if c.PDFToImageDPI <= 0 {
		return fmt.Errorf("PDF_TO_IMAGE_DPI must be positive")
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		return fmt.Errorf("IMAGE_QUALITY must be between 1 and 100")
	}
	if c.ThumbnailSize <= 0 {
		return fmt.Errorf("THUMBNAIL_SIZE must be positive")
	}
	if c.PageWorkers < 1 {
		c.PageWorkers = 1
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
