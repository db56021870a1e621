package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// parseEnv overlays values from environment variables. Unset variables leave
// the current value alone; a set but unparsable value panics.
//
//	HTTP_ADDR, GRPC_ADDR, DATABASE_URL, JWT_SECRET,
//	ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL (Go durations),
//	CORS_ORIGINS, TRUSTED_PROXIES, KAFKA_BROKERS (comma separated),
//	AUTH_RATE_LIMIT, AUTH_RATE_BURST, KAFKA_ENABLED, KAFKA_TOPIC
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		config.EndpointAddrHTTP = v
	}
	if v, ok := os.LookupEnv("GRPC_ADDR"); ok {
		config.EndpointAddrGRPC = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("JWT_SECRET"); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv("ACCESS_TOKEN_TTL"); ok {
		config.AccessTokenValidityDuration = mustParse("ACCESS_TOKEN_TTL", v, time.ParseDuration)
	}
	if v, ok := os.LookupEnv("REFRESH_TOKEN_TTL"); ok {
		config.RefreshTokenValidityDuration = mustParse("REFRESH_TOKEN_TTL", v, time.ParseDuration)
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		config.CORSOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("TRUSTED_PROXIES"); ok {
		config.TrustedProxies = splitList(v)
	}
	if v, ok := os.LookupEnv("AUTH_RATE_LIMIT"); ok {
		config.AuthRateLimit = mustParse("AUTH_RATE_LIMIT", v, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
	}
	if v, ok := os.LookupEnv("AUTH_RATE_BURST"); ok {
		config.AuthRateBurst = mustParse("AUTH_RATE_BURST", v, strconv.Atoi)
	}
	if v, ok := os.LookupEnv("KAFKA_ENABLED"); ok {
		config.KafkaEnabled = mustParse("KAFKA_ENABLED", v, strconv.ParseBool)
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		config.KafkaBrokers = splitList(v)
	}
	if v, ok := os.LookupEnv("KAFKA_TOPIC"); ok {
		config.KafkaTopic = v
	}
}

func mustParse[T any](name, value string, parse func(string) (T, error)) T {
	v, err := parse(value)
	if err != nil {
		panic(fmt.Errorf("env %s: %w", name, err))
	}
	return v
}
