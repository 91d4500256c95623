package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OCR_ENGINE", "")
	t.Setenv("STORAGE_PROVIDER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StorageProvider != "local" {
		t.Errorf("StorageProvider = %q, want local", cfg.StorageProvider)
	}
	if cfg.OCREngine != "tesseract" {
		t.Errorf("OCREngine = %q, want tesseract", cfg.OCREngine)
	}
	if cfg.PDFToImageDPI != 300 {
		t.Errorf("PDFToImageDPI = %d, want 300", cfg.PDFToImageDPI)
	}
	if cfg.PresignTTL != time.Hour {
		t.Errorf("PresignTTL = %v, want 1h", cfg.PresignTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "S3")
	t.Setenv("OCR_LANG", "eng+deu")
	t.Setenv("PAGE_WORKERS", "0")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("PRESIGN_TTL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StorageProvider != "s3" {
		t.Errorf("StorageProvider = %q, want s3", cfg.StorageProvider)
	}
	if len(cfg.OCRLanguages) != 2 || cfg.OCRLanguages[1] != "deu" {
		t.Errorf("OCRLanguages = %v", cfg.OCRLanguages)
	}
	if cfg.PageWorkers != 1 {
		t.Errorf("PageWorkers = %d, want clamp to 1", cfg.PageWorkers)
	}
	if !cfg.S3UseSSL {
		t.Errorf("S3UseSSL should be true")
	}
	if cfg.PresignTTL != 15*time.Minute {
		t.Errorf("PresignTTL = %v", cfg.PresignTTL)
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	tests := map[string]string{
		"STORAGE_PROVIDER":  "ftp",
		"OCR_ENGINE":        "abbyy",
		"DB_DRIVER":         "oracle",
		"ANALYZER_PROVIDER": "magic",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestGCSRequiresBucket(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "gcs")
	t.Setenv("GCS_BUCKET_NAME", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when GCS bucket is missing")
	}
}
