package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/taskkeeper/internal/flagx"
	"github.com/dmitrijs2005/taskkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Only fields present
// in the file override the current values, which is why every field is a
// pointer.
type FileConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    *string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	CORSOrigins                  []string        `json:"cors_origins" yaml:"cors_origins"`
	TrustedProxies               []string        `json:"trusted_proxies" yaml:"trusted_proxies"`
	AuthRateLimit                *float64        `json:"auth_rate_limit" yaml:"auth_rate_limit"`
	AuthRateBurst                *int            `json:"auth_rate_burst" yaml:"auth_rate_burst"`
	KafkaEnabled                 *bool           `json:"kafka_enabled" yaml:"kafka_enabled"`
	KafkaBrokers                 []string        `json:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic                   *string         `json:"kafka_topic" yaml:"kafka_topic"`
}

// parseFile loads the file named by -c / -config, if any, and overlays it on
// config. Files ending in .yaml or .yml are decoded as YAML, everything else
// as JSON. An unreadable or malformed file panics, as a misconfigured server
// must not start.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	setIf(&config.AuthRateLimit, c.AuthRateLimit)
	setIf(&config.AuthRateBurst, c.AuthRateBurst)
	setIf(&config.KafkaEnabled, c.KafkaEnabled)
	if c.KafkaBrokers != nil {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setIf(&config.KafkaTopic, c.KafkaTopic)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
