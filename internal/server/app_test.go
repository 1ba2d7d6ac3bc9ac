package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/events"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = ""
	c.BlobBackend = config.BlobBackendLocal
	c.LocalBlobDir = filepath.Join(t.TempDir(), "blobs")
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.LogLevel = "error"
	return c
}

func TestOpenRepositories_InMemoryWithoutDSN(t *testing.T) {
	rm, err := OpenRepositories(context.Background(), localConfig(t), logging.Nop())
	require.NoError(t, err)
	assert.IsType(t, &repomanager.InMemoryRepositoryManager{}, rm)
}

func TestOpenBlobStore(t *testing.T) {
	c := localConfig(t)
	s, err := OpenBlobStore(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, s)

	c.BlobBackend = "tape"
	_, err = OpenBlobStore(context.Background(), c)
	assert.ErrorContains(t, err, "unknown blob backend")
}

func TestOptionalIntegrationsDisabled(t *testing.T) {
	c := localConfig(t)

	r, closer := NewLogoResolver(context.Background(), c, logging.Nop())
	require.NotNil(t, r)
	assert.NoError(t, closer.Close())

	assert.IsType(t, events.NopPublisher{}, OpenPublisher(context.Background(), c, logging.Nop()))
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), localConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
