package config

import (
	"github.com/spf13/pflag"
)

// Flags collects config overrides from the command line. Only flags the
// user actually set override the file and the defaults.
type Flags struct {
	// ConfigPath is the value of -c/--config.
	ConfigPath string

	fs     *pflag.FlagSet
	values Config
}

// BindFlags registers the config flags on fs.
//
//	-c, --config string          JSON or YAML config file
//	    --backend string         remote store: grpc or s3
//	-a, --server string          address and port of the sync server
//	-d, --db string              path of the local SQLite database
//	    --token string           access token, overrides the saved one
//	-i, --interval duration      period of the background sync loop
//	-p, --parallelism int        records synced at once
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	v := &f.values
	v.LoadDefaults()

	fs.StringVarP(&f.ConfigPath, "config", "c", "", "JSON or YAML config file")
	fs.StringVar(&v.RemoteBackend, "backend", v.RemoteBackend, "remote store: grpc or s3")
	fs.StringVarP(&v.ServerEndpointAddr, "server", "a", v.ServerEndpointAddr, "address and port of the sync server")
	fs.StringVarP(&v.DatabasePath, "db", "d", v.DatabasePath, "path of the local SQLite database")
	fs.StringVar(&v.AccessToken, "token", "", "access token, overrides the saved one")
	fs.DurationVar(&v.RemoteTimeout, "remote-timeout", v.RemoteTimeout, "timeout of a single remote call")
	fs.IntVar(&v.RetryMaxAttempts, "retry-max-attempts", v.RetryMaxAttempts, "remote write attempts per record and sync pass")
	fs.DurationVar(&v.RetryBaseDelay, "retry-base-delay", v.RetryBaseDelay, "wait before the second attempt, doubled afterwards")
	fs.IntVar(&v.DeadLetterThreshold, "dead-letter-threshold", v.DeadLetterThreshold, "failed writes after which a record is marked FAILED (0 disables)")
	fs.IntVarP(&v.SyncParallelism, "parallelism", "p", v.SyncParallelism, "records synced at once")
	fs.DurationVarP(&v.SyncInterval, "interval", "i", v.SyncInterval, "period of the background sync loop")
	fs.StringVar(&v.S3Bucket, "s3-bucket", v.S3Bucket, "bucket of the s3 backend")
	fs.StringVar(&v.S3Region, "s3-region", v.S3Region, "region of the s3 backend")
	fs.StringVar(&v.S3Endpoint, "s3-endpoint", v.S3Endpoint, "custom s3 endpoint, e.g. a MinIO URL")
	fs.BoolVar(&v.S3UsePathStyle, "s3-path-style", v.S3UsePathStyle, "use path-style s3 addressing")
	fs.StringVar(&v.LogFile, "log-file", v.LogFile, "write JSON logs to this rotated file instead of stderr")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "debug, info, warn or error")

	return f
}

var flagFields = map[string]func(dst, src *Config){
	"backend":               func(d, s *Config) { d.RemoteBackend = s.RemoteBackend },
	"server":                func(d, s *Config) { d.ServerEndpointAddr = s.ServerEndpointAddr },
	"db":                    func(d, s *Config) { d.DatabasePath = s.DatabasePath },
	"token":                 func(d, s *Config) { d.AccessToken = s.AccessToken },
	"remote-timeout":        func(d, s *Config) { d.RemoteTimeout = s.RemoteTimeout },
	"retry-max-attempts":    func(d, s *Config) { d.RetryMaxAttempts = s.RetryMaxAttempts },
	"retry-base-delay":      func(d, s *Config) { d.RetryBaseDelay = s.RetryBaseDelay },
	"dead-letter-threshold": func(d, s *Config) { d.DeadLetterThreshold = s.DeadLetterThreshold },
	"parallelism":           func(d, s *Config) { d.SyncParallelism = s.SyncParallelism },
	"interval":              func(d, s *Config) { d.SyncInterval = s.SyncInterval },
	"s3-bucket":             func(d, s *Config) { d.S3Bucket = s.S3Bucket },
	"s3-region":             func(d, s *Config) { d.S3Region = s.S3Region },
	"s3-endpoint":           func(d, s *Config) { d.S3Endpoint = s.S3Endpoint },
	"s3-path-style":         func(d, s *Config) { d.S3UsePathStyle = s.S3UsePathStyle },
	"log-file":              func(d, s *Config) { d.LogFile = s.LogFile },
	"log-level":             func(d, s *Config) { d.LogLevel = s.LogLevel },
}

// Load builds the effective config after the flags were parsed: defaults,
// then the config file, then every flag that was set explicitly.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	for name, apply := range flagFields {
		if f.fs.Changed(name) {
			apply(cfg, &f.values)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
