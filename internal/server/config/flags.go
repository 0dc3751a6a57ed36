package config

import (
	"flag"
	"io"
	"time"

	"github.com/eunio/dailysync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string             gRPC bind address (e.g., ":50051")
//	-d string             PostgreSQL DSN
//	-s string             JWT HMAC secret key
//	-t int                access token validity, minutes
//	-b int                largest accepted BatchSet
//	-l string             log level: debug, info, warn or error
//	-issue-token string   print an access token for this owner and exit
//
// args is filtered with flagx.FilterArgs first, so flags of other
// components (such as -c) do not collide.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-b", "-l", "-issue-token", "--issue-token"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	fs.IntVar(&config.MaxBatchSize, "b", config.MaxBatchSize, "largest accepted batch")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.IssueTokenFor, "issue-token", config.IssueTokenFor, "print an access token for this owner and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	return nil
}
