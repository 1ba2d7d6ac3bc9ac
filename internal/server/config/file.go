package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VAULT_DATABASE_DSN.
const EnvPrefix = "VAULT"

// parseFile overlays cfg with the config file at path (format taken from
// the extension: .json, .yaml, .yml or .toml) and then with VAULT_*
// environment variables. An empty path skips the file.
func parseFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every key needs a default so that env-only values are picked up by Unmarshal
	for key, val := range map[string]any{
		"endpoint_addr_http":    cfg.EndpointAddrHTTP,
		"endpoint_addr_grpc":    cfg.EndpointAddrGRPC,
		"database_dsn":          cfg.DatabaseDSN,
		"secret_key":            cfg.SecretKey,
		"log_level":             cfg.LogLevel,
		"blob_backend":          cfg.BlobBackend,
		"local_blob_dir":        cfg.LocalBlobDir,
		"s3_root_user":          cfg.S3RootUser,
		"s3_root_password":      cfg.S3RootPassword,
		"s3_bucket":             cfg.S3Bucket,
		"s3_region":             cfg.S3Region,
		"s3_base_endpoint":      cfg.S3BaseEndpoint,
		"redis_addr":            cfg.RedisAddr,
		"kafka_brokers":         cfg.KafkaBrokers,
		"kafka_topic":           cfg.KafkaTopic,
		"logo_timeout":          cfg.LogoTimeout,
		"logo_refresh_interval": cfg.LogoRefreshInterval,
		"max_upload_bytes":      cfg.MaxUploadBytes,
	} {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = cleanList(cfg.KafkaBrokers)
	return nil
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
