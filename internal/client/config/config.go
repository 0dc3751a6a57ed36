package config

import (
	"fmt"
	"time"

	"github.com/eunio/dailysync/internal/common"
)

// Remote backends.
const (
	BackendGRPC = "grpc"
	BackendS3   = "s3"
)

// Config holds runtime settings for the dailysync CLI.
type Config struct {
	RemoteBackend      string
	ServerEndpointAddr string
	DatabasePath       string
	// AccessToken overrides the token saved by "login".
	AccessToken string

	RemoteTimeout       time.Duration
	RetryMaxAttempts    int
	RetryBaseDelay      time.Duration
	DeadLetterThreshold int
	SyncParallelism     int
	SyncInterval        time.Duration

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	LogFile  string
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteBackend = BackendGRPC
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "dailysync.db"
	c.RemoteTimeout = 10 * time.Second
	c.RetryMaxAttempts = 5
	c.RetryBaseDelay = time.Second
	c.DeadLetterThreshold = 25
	c.SyncParallelism = 4
	c.SyncInterval = 30 * time.Second
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
}

// Load applies defaults and then the config file at path, if any.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the CLI cannot run with.
func (c *Config) Validate() error {
	switch c.RemoteBackend {
	case BackendGRPC:
		if c.ServerEndpointAddr == "" {
			return fmt.Errorf("%w: server endpoint address is required", common.ErrValidation)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown remote backend %q", common.ErrValidation, c.RemoteBackend)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database path is required", common.ErrValidation)
	}
	if c.RemoteTimeout <= 0 || c.SyncInterval <= 0 {
		return fmt.Errorf("%w: timeouts and intervals must be positive", common.ErrValidation)
	}
	if c.RetryMaxAttempts < 1 || c.SyncParallelism < 1 || c.RetryBaseDelay < 0 || c.DeadLetterThreshold < 0 {
		return fmt.Errorf("%w: retry and parallelism settings out of range", common.ErrValidation)
	}
	return nil
}
