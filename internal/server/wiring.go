package server

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/events"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/logo"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// OpenRepositories connects to PostgreSQL, or falls back to the in-memory
// repositories when no DSN is configured.
func OpenRepositories(ctx context.Context, c *config.Config, l logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		l.Warn(ctx, "no database DSN configured, using in-memory repositories")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}
	rm, err := repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return rm, nil
}

// OpenBlobStore builds the configured blob backend.
func OpenBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.BlobBackend {
	case config.BlobBackendLocal:
		return blobstore.NewLocalStore(c.LocalBlobDir)
	case config.BlobBackendS3, "":
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

// NewLogoResolver builds the resolver with the optional Redis cache. The
// returned closer releases the cache connection.
func NewLogoResolver(ctx context.Context, c *config.Config, l logging.Logger) (*logo.Resolver, io.Closer) {
	opts := []logo.Option{logo.WithTimeout(c.LogoTimeout), logo.WithLogger(l)}

	var closer io.Closer = nopCloser{}
	if c.RedisAddr != "" {
		client, err := logo.NewRedisClient(ctx, c.RedisAddr)
		if err != nil {
			l.Warn(ctx, "logo cache disabled", "error", err)
		} else {
			opts = append(opts, logo.WithCache(logo.NewRedisCache(client, logo.DefaultCacheTTL)))
			closer = client
		}
	}
	return logo.NewResolver(opts...), closer
}

// OpenPublisher connects to Kafka, or returns a no-op publisher when no
// brokers are configured or the brokers are unreachable.
func OpenPublisher(ctx context.Context, c *config.Config, l logging.Logger) events.Publisher {
	if len(c.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	p, err := events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
	if err != nil {
		l.Warn(ctx, "account events disabled", "error", err)
		return events.NopPublisher{}
	}
	return p
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
