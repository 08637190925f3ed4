// Package config loads service settings from command-line flags with
// environment variable fallbacks.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Extraction providers.
const (
	ProviderNanonets = "nanonets"
	ProviderGemini   = "gemini"
)

// Extraction modes decide which record shape the upload endpoint answers with.
const (
	ModeRaw      = "raw"
	ModeBusiness = "business"
)

// Config holds every setting of the API server.
type Config struct {
	Port      string
	StaticDir string

	// Extraction vendor.
	ExtractionProvider string
	ExtractionMode     string
	OCRBaseURL         string
	OCRModelID         string
	OCRAPIKey          string
	OCRAuthScheme      string // "basic" or "bearer"
	ExtractionTimeout  time.Duration
	MaxUploadBytes     int64
	GeminiModel        string
	GeminiAPIKey       string

	// Google Cloud integrations, all optional.
	ArchiveBucket         string
	GoogleCredentialsFile string
	BigQueryProject       string
	BigQueryDataset       string

	NotionToken      string
	NotionBookingsDB string

	SessionTTL    time.Duration
	MockLatency   time.Duration
	ExportWorkers int

	LogLevel  string
	LogFormat string
}

// Load parses args (usually os.Args[1:]). Flags win over environment
// variables, which win over defaults.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	fs.StringVar(&cfg.Port, "port", getenv("PORT", "3000"), "HTTP server port")
	fs.StringVar(&cfg.StaticDir, "static", getenv("STATIC_DIR", "public"), "directory holding upload.html")
	fs.StringVar(&cfg.ExtractionProvider, "provider", getenv("EXTRACTION_PROVIDER", ProviderNanonets), "extraction provider: nanonets or gemini")
	fs.StringVar(&cfg.ExtractionMode, "mode", getenv("EXTRACTION_MODE", ModeRaw), "upload response shape: raw or business")
	fs.StringVar(&cfg.OCRBaseURL, "ocr-url", getenv("OCR_API_URL", "https://app.nanonets.com/api/v2/OCR/Model"), "OCR vendor model endpoint")
	fs.StringVar(&cfg.OCRModelID, "ocr-model", getenv("OCR_MODEL_ID", ""), "OCR vendor model identifier")
	fs.StringVar(&cfg.ArchiveBucket, "bucket", getenv("ARCHIVE_BUCKET", ""), "GCS bucket for archiving uploaded invoices (or set ARCHIVE_BUCKET env)")
	fs.StringVar(&cfg.LogLevel, "log-level", getenv("LOG_LEVEL", "info"), "log level")

	cfg.OCRAPIKey = getenv("OCR_API_KEY", "")
	cfg.OCRAuthScheme = strings.ToLower(getenv("OCR_AUTH_SCHEME", "basic"))
	cfg.GeminiModel = getenv("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.GeminiAPIKey = getenv("GEMINI_API_KEY", "")
	cfg.GoogleCredentialsFile = getenv("GOOGLE_CREDENTIALS_FILE", "")
	cfg.BigQueryProject = getenv("BQ_PROJECT", "")
	cfg.BigQueryDataset = getenv("BQ_DATASET", "payables")
	cfg.NotionToken = getenv("NOTION_TOKEN", "")
	cfg.NotionBookingsDB = getenv("NOTION_BOOKINGS_DB", "")
	cfg.LogFormat = getenv("LOG_FORMAT", "console")

	var err error
	if cfg.ExtractionTimeout, err = getDuration("EXTRACTION_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.MockLatency, err = getDuration("MOCK_LATENCY", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 20<<20); err != nil {
		return nil, err
	}
	workers, err := getInt64("EXPORT_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	cfg.ExportWorkers = int(workers)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.ExtractionProvider {
	case ProviderNanonets, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown extraction provider %q", c.ExtractionProvider)
	}
	switch c.ExtractionMode {
	case ModeRaw, ModeBusiness:
	default:
		return fmt.Errorf("config: unknown extraction mode %q", c.ExtractionMode)
	}
	switch c.OCRAuthScheme {
	case "basic", "bearer":
	default:
		return fmt.Errorf("config: OCR_AUTH_SCHEME must be basic or bearer, got %q", c.OCRAuthScheme)
	}
	if c.ExtractionTimeout <= 0 {
		return fmt.Errorf("config: EXTRACTION_TIMEOUT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.ExportWorkers < 1 {
		c.ExportWorkers = 1
	}
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, def int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
