package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, hours
//	-r int      refresh token validity, hours
//	-o string   comma separated CORS origins
//	-p string   comma separated trusted proxy addresses or CIDRs
//	-l float    auth requests per second per client
//	-b int      auth burst size
//	-k bool     enable Kafka task events
//	-kb string  comma separated Kafka brokers
//	-kt string  Kafka topic
//
// Boolean -k must be given as -k or -k=true. os.Args is filtered down to these flags first, so subcommand names and
// flags owned by other components are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-r", "-o", "-p", "-l", "-b", "-k", "-kb", "-kt"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to serve the HTTP API on")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to serve gRPC health on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Hours()), "access_token_validity_duration (in hours)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Hours()), "refresh_token_validity_duration (in hours)")

	corsOrigins := fs.String("o", strings.Join(config.CORSOrigins, ","), "CORS origins, comma separated")
	trustedProxies := fs.String("p", strings.Join(config.TrustedProxies, ","), "trusted proxies, comma separated")
	fs.Float64Var(&config.AuthRateLimit, "l", config.AuthRateLimit, "auth requests per second per client")
	fs.IntVar(&config.AuthRateBurst, "b", config.AuthRateBurst, "auth burst size")

	fs.BoolVar(&config.KafkaEnabled, "k", config.KafkaEnabled, "publish task events to Kafka")
	kafkaBrokers := fs.String("kb", strings.Join(config.KafkaBrokers, ","), "Kafka brokers, comma separated")
	fs.StringVar(&config.KafkaTopic, "kt", config.KafkaTopic, "Kafka topic")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only flags given explicitly override, so a "90m" from a file is not
	// truncated to whole hours.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Hour
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Hour
		case "o":
			config.CORSOrigins = splitList(*corsOrigins)
		case "p":
			config.TrustedProxies = splitList(*trustedProxies)
		case "kb":
			config.KafkaBrokers = splitList(*kafkaBrokers)
		}
	})
}
