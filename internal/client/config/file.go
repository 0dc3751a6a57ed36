package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eunio/dailysync/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is a DTO used only for decoding config files. Pointer fields
// tell "absent" apart from zero values.
type fileConfig struct {
	RemoteBackend      *string `json:"remote_backend" yaml:"remote_backend"`
	ServerEndpointAddr *string `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	DatabasePath       *string `json:"database_path" yaml:"database_path"`
	AccessToken        *string `json:"access_token" yaml:"access_token"`

	RemoteTimeout       *timex.Duration `json:"remote_timeout" yaml:"remote_timeout"`
	RetryMaxAttempts    *int            `json:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelay      *timex.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
	DeadLetterThreshold *int            `json:"dead_letter_threshold" yaml:"dead_letter_threshold"`
	SyncParallelism     *int            `json:"sync_parallelism" yaml:"sync_parallelism"`
	SyncInterval        *timex.Duration `json:"sync_interval" yaml:"sync_interval"`

	S3Bucket          *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region          *string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint        *string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKeyID     *string `json:"s3_access_key_id" yaml:"s3_access_key_id"`
	S3SecretAccessKey *string `json:"s3_secret_access_key" yaml:"s3_secret_access_key"`
	S3UsePathStyle    *bool   `json:"s3_use_path_style" yaml:"s3_use_path_style"`

	LogFile  *string `json:"log_file" yaml:"log_file"`
	LogLevel *string `json:"log_level" yaml:"log_level"`
}

// loadFile overlays cfg with the keys present in the file at path.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

func (fc *fileConfig) apply(cfg *Config) {
	set(&cfg.RemoteBackend, fc.RemoteBackend)
	set(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	set(&cfg.DatabasePath, fc.DatabasePath)
	set(&cfg.AccessToken, fc.AccessToken)

	setDuration(&cfg.RemoteTimeout, fc.RemoteTimeout)
	set(&cfg.RetryMaxAttempts, fc.RetryMaxAttempts)
	setDuration(&cfg.RetryBaseDelay, fc.RetryBaseDelay)
	set(&cfg.DeadLetterThreshold, fc.DeadLetterThreshold)
	set(&cfg.SyncParallelism, fc.SyncParallelism)
	setDuration(&cfg.SyncInterval, fc.SyncInterval)

	set(&cfg.S3Bucket, fc.S3Bucket)
	set(&cfg.S3Region, fc.S3Region)
	set(&cfg.S3Endpoint, fc.S3Endpoint)
	set(&cfg.S3AccessKeyID, fc.S3AccessKeyID)
	set(&cfg.S3SecretAccessKey, fc.S3SecretAccessKey)
	set(&cfg.S3UsePathStyle, fc.S3UsePathStyle)

	set(&cfg.LogFile, fc.LogFile)
	set(&cfg.LogLevel, fc.LogLevel)
}
