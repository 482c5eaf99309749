package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the worker, populated from the
// environment at startup.
type Config struct {
	Database   DatabaseConfig
	Blob       BlobConfig
	Queue      QueueConfig
	Processing ProcessingConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL                    string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

// BlobConfig holds object-storage settings.
type BlobConfig struct {
	BucketName string
	Region     string
}

// QueueConfig holds queue client settings.
type QueueConfig struct {
	URL                 string
	MaxNumberOfMessages int32
	WaitTimeSeconds     int32
	VisibilityTimeout   int32
}

// ProcessingConfig holds retry and checkpoint tuning.
type ProcessingConfig struct {
	MaxRetries             int
	RetryDelaySeconds      int
	ProgressUpdateInterval int
}

// LogConfig holds logging controls.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig holds the ambient ops HTTP surface settings.
type MetricsConfig struct {
	Port int
}

// Load loads configuration from environment variables, applying the
// defaults from the external-interfaces table.
func Load() (*Config, error) {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	bucketName := getEnv("CSV_BUCKET_NAME", "")
	if bucketName == "" {
		return nil, fmt.Errorf("CSV_BUCKET_NAME is required")
	}

	queueURL := getEnv("SQS_QUEUE_URL", "")
	if queueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:                    databaseURL,
			MaxOpenConns:           getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:           getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeMinutes: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		},
		Blob: BlobConfig{
			BucketName: bucketName,
			Region:     getEnv("AWS_REGION", "us-east-1"),
		},
		Queue: QueueConfig{
			URL:                 queueURL,
			MaxNumberOfMessages: int32(getEnvAsInt("SQS_MAX_NUMBER_OF_MESSAGES", 1)),
			WaitTimeSeconds:     int32(getEnvAsInt("SQS_WAIT_TIME_SECONDS", 20)),
			VisibilityTimeout:   int32(getEnvAsInt("SQS_VISIBILITY_TIMEOUT", 300)),
		},
		Processing: ProcessingConfig{
			MaxRetries:             getEnvAsInt("MAX_RETRIES", 3),
			RetryDelaySeconds:      getEnvAsInt("RETRY_DELAY_SECONDS", 5),
			ProgressUpdateInterval: getEnvAsInt("PROGRESS_UPDATE_INTERVAL", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Port: getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	return cfg, nil
}

// RetryDelay is Processing.RetryDelaySeconds as a time.Duration.
func (c ProcessingConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return intValue
}
