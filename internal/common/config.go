package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source kinds.
const (
	SourceDrive = "drive"
	SourceLocal = "local"
)

// Config holds all application configuration
type Config struct {
	Source   SourceConfig
	Monitor  MonitorConfig
	Dispatch DispatchConfig
	OCR      OCRConfig
	Ledger   LedgerConfig
	Server   ServerConfig
	Log      LogConfig
}

// SourceConfig selects where documents come from and where they are archived.
type SourceConfig struct {
	Kind                 string
	DriveCredentialsFile string
	DriveFolderID        string
	DriveProcessedID     string
	LocalInboxDir        string
	LocalProcessedDir    string
}

// MonitorConfig holds polling-loop configuration
type MonitorConfig struct {
	Interval        time.Duration
	DocumentTimeout time.Duration
}

// DispatchConfig holds downstream delivery configuration
type DispatchConfig struct {
	TriggerURL   string
	Timeout      time.Duration
	KafkaBrokers []string
	KafkaTopic   string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Lang        string
	TessdataDir string
	DPI         int
	MaxPages    int
	Pdftoppm    string
	Tesseract   string

	PSM           int  // tesseract --psm; 0 leaves the engine default
	OEM           int  // tesseract --oem; 0 leaves the engine default
	TSVConfidence bool // run a second tsv pass per page for word confidence
}

// LedgerConfig holds the dispatch ledger DSN; empty disables it.
type LedgerConfig struct {
	DSN string
}

// ServerConfig holds the optional gRPC health endpoint.
type ServerConfig struct {
	HealthAddr string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv loads variables from the given files (default ".env") without overriding
// the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return WrapError(err, "load "+p)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:                 strings.ToLower(getEnv("SOURCE_KIND", SourceDrive)),
			DriveCredentialsFile: getEnv("DRIVE_CREDENTIALS_FILE", "credentials.json"),
			DriveFolderID:        getEnv("DRIVE_FOLDER_ID", ""),
			DriveProcessedID:     getEnv("DRIVE_FOLDER_PROCESSED_ID", ""),
			LocalInboxDir:        getEnv("LOCAL_INBOX_DIR", ""),
			LocalProcessedDir:    getEnv("LOCAL_PROCESSED_DIR", ""),
		},
		Monitor: MonitorConfig{
			Interval:        getEnvAsSecondsOrDuration("CHECK_INTERVAL", 50*time.Second),
			DocumentTimeout: getEnvAsDuration("DOCUMENT_TIMEOUT", 3*time.Minute),
		},
		Dispatch: DispatchConfig{
			TriggerURL:   getEnv("MCP_TRIGGER_URL", ""),
			Timeout:      getEnvAsDuration("DISPATCH_TIMEOUT", 45*time.Second),
			KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", ""),
		},
		OCR: OCRConfig{
			Lang:        getEnv("OCR_LANG", "por"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),

			PSM:           getEnvAsInt("OCR_PSM", 0),
			OEM:           getEnvAsInt("OCR_OEM", 0),
			TSVConfidence: getEnvAsBool("OCR_TSV_CONFIDENCE", false),
		},
		Ledger: LedgerConfig{
			DSN: getEnv("LEDGER_DSN", ""),
		},
		Server: ServerConfig{
			HealthAddr: getEnv("HEALTH_ADDR", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
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

// getEnvAsSecondsOrDuration accepts a bare integer (seconds) or a Go duration string.
func getEnvAsSecondsOrDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return getEnvAsDuration(key, defaultValue)
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("SOURCE_KIND", c.Source.Kind, OneOf(SourceDrive, SourceLocal))
	switch c.Source.Kind {
	case SourceDrive:
		v.Field("DRIVE_FOLDER_ID", c.Source.DriveFolderID, Required)
		v.Field("DRIVE_FOLDER_PROCESSED_ID", c.Source.DriveProcessedID, Required)
		v.Field("DRIVE_CREDENTIALS_FILE", c.Source.DriveCredentialsFile, Required)
	case SourceLocal:
		v.Field("LOCAL_INBOX_DIR", c.Source.LocalInboxDir, Required)
		v.Field("LOCAL_PROCESSED_DIR", c.Source.LocalProcessedDir, Required)
	}
	v.Field("CHECK_INTERVAL", c.Monitor.Interval, PositiveDuration)
	v.Field("DOCUMENT_TIMEOUT", c.Monitor.DocumentTimeout, PositiveDuration)
	v.Field("MCP_TRIGGER_URL", c.Dispatch.TriggerURL, HTTPURL)
	v.Field("DISPATCH_TIMEOUT", c.Dispatch.Timeout, PositiveDuration)
	if len(c.Dispatch.KafkaBrokers) > 0 {
		v.Field("KAFKA_TOPIC", c.Dispatch.KafkaTopic, Required)
	}
	v.Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json"))

	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
