// Package config loads runtime configuration for the dailysync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c/--config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags registered by BindFlags, which override earlier
//     values when given explicitly.
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "remote_backend": "grpc",
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "dailysync.db",
//	  "remote_timeout": "10s",
//	  "retry_max_attempts": 5,
//	  "retry_base_delay": "1s",
//	  "dead_letter_threshold": 25,
//	  "sync_parallelism": 4,
//	  "sync_interval": "30s",
//	  "s3_bucket": "daily-logs",
//	  "log_file": "dailysync.log"
//	}
//
// Keys that are absent from the file keep their default.
package config
