// Package config loads the pipeline configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Object store backends.
const (
	ObjectStoreGCS   = "gcs"
	ObjectStoreMinIO = "minio"
)

// Text-detection backends.
const (
	TextDetectionWorkflow  = "workflow"
	TextDetectionVertex    = "vertex"
	TextDetectionTesseract = "tesseract"
)

// Config holds all configuration for the document pipeline.
type Config struct {
	ProjectID string `envconfig:"PROJECT_ID"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	ObjectStoreBackend string `envconfig:"OBJECT_STORE_BACKEND" default:"gcs"`
	UploadBucket       string `envconfig:"UPLOAD_BUCKET"`
	AssetBucket        string `envconfig:"ASSET_BUCKET"`
	MinIOEndpoint      string `envconfig:"MINIO_ENDPOINT"`
	MinIOAccessKey     string `envconfig:"MINIO_ACCESS_KEY"`
	MinIOSecretKey     string `envconfig:"MINIO_SECRET_KEY"`
	MinIOUseSSL        bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	FirestoreDatabase    string `envconfig:"FIRESTORE_DATABASE"`
	DocumentsCollection  string `envconfig:"FIRESTORE_COLLECTION" default:"documents"`
	ExecutionsCollection string `envconfig:"EXECUTIONS_COLLECTION" default:"executions"`
	JobsCollection       string `envconfig:"TEXT_DETECTION_JOBS_COLLECTION" default:"textDetectionJobs"`

	TextDetectionBackend string `envconfig:"TEXT_DETECTION_BACKEND" default:"workflow"`
	WorkflowID           string `envconfig:"WORKFLOW_ID" default:"text-detection"`
	WorkflowLocation     string `envconfig:"WORKFLOW_LOCATION" default:"us-central1"`
	VertexAIRegion       string `envconfig:"VERTEX_AI_REGION" default:"us-central1"`
	VertexModel          string `envconfig:"VERTEX_MODEL" default:"gemini-1.5-pro"`
	TesseractLanguages   string `envconfig:"TESSERACT_LANGUAGES" default:"eng"`
	MaxConcurrentJobs    int    `envconfig:"MAX_CONCURRENT_JOBS" default:"4"`
	DetectorEngine       string `envconfig:"TEXT_DETECTOR_ENGINE" default:"vertex"`

	PollMaxAttempts       int           `envconfig:"POLL_MAX_ATTEMPTS" default:"100"`
	PollBaseInterval      time.Duration `envconfig:"POLL_BASE_INTERVAL" default:"5s"`
	PollBackoffMultiplier float64       `envconfig:"POLL_BACKOFF_MULTIPLIER" default:"2"`

	MetadataTimeout  time.Duration `envconfig:"METADATA_TIMEOUT" default:"120s"`
	ThumbnailTimeout time.Duration `envconfig:"THUMBNAIL_TIMEOUT" default:"120s"`
	SubmitTimeout    time.Duration `envconfig:"SUBMIT_TIMEOUT" default:"30s"`
	PollTimeout      time.Duration `envconfig:"POLL_TIMEOUT" default:"300s"`
	ParseTimeout     time.Duration `envconfig:"PARSE_TIMEOUT" default:"30s"`
	PersistTimeout   time.Duration `envconfig:"PERSIST_TIMEOUT" default:"30s"`

	ThumbnailWidth int `envconfig:"THUMBNAIL_WIDTH" default:"200"`

	// ExecutionLeaseGrace is how long a running execution may go without a
	// write beyond its expected next one before another upload takes over.
	ExecutionLeaseGrace time.Duration `envconfig:"EXECUTION_LEASE_GRACE" default:"5m"`

	NotifySinkURL string `envconfig:"NOTIFY_SINK_URL"`
	EventSource   string `envconfig:"EVENT_SOURCE" default:"docenrich/pipeline"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the keys each selected backend depends on.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if c.AssetBucket == "" {
		return fmt.Errorf("ASSET_BUCKET environment variable must be set")
	}
	// Thumbnails written into the upload bucket would trigger new executions.
	if c.UploadBucket == c.AssetBucket {
		return fmt.Errorf("ASSET_BUCKET must differ from UPLOAD_BUCKET, both are %q", c.AssetBucket)
	}

	switch c.ObjectStoreBackend {
	case ObjectStoreGCS:
	case ObjectStoreMinIO:
		if c.MinIOEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT environment variable must be set for the minio backend")
		}
	default:
		return fmt.Errorf("unknown OBJECT_STORE_BACKEND %q", c.ObjectStoreBackend)
	}

	switch c.TextDetectionBackend {
	case TextDetectionWorkflow:
		if c.WorkflowID == "" || c.WorkflowLocation == "" {
			return fmt.Errorf("WORKFLOW_ID and WORKFLOW_LOCATION must be set for the workflow backend")
		}
	case TextDetectionVertex:
		if c.ObjectStoreBackend != ObjectStoreGCS {
			return fmt.Errorf("the vertex text-detection backend reads gs:// objects and requires OBJECT_STORE_BACKEND=gcs")
		}
	case TextDetectionTesseract:
	default:
		return fmt.Errorf("unknown TEXT_DETECTION_BACKEND %q", c.TextDetectionBackend)
	}

	switch c.DetectorEngine {
	case TextDetectionVertex, TextDetectionTesseract:
	default:
		return fmt.Errorf("TEXT_DETECTOR_ENGINE must be %s or %s, got %q", TextDetectionVertex, TextDetectionTesseract, c.DetectorEngine)
	}

	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1, got %d", c.PollMaxAttempts)
	}
	if c.PollBaseInterval < 0 || c.PollBackoffMultiplier < 1 {
		return fmt.Errorf("POLL_BASE_INTERVAL must be non-negative and POLL_BACKOFF_MULTIPLIER at least 1")
	}
	if c.ExecutionLeaseGrace <= 0 {
		return fmt.Errorf("EXECUTION_LEASE_GRACE must be positive, got %s", c.ExecutionLeaseGrace)
	}
	if c.MaxConcurrentJobs < 1 {
		c.MaxConcurrentJobs = 1
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
