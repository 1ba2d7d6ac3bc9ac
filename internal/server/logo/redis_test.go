package logo

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory stand-in for the two commands RedisCache uses.
type fakeRedis struct {
	redis.Cmdable

	data   map[string]string
	ttl    time.Duration
	getErr error
	setErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCache_SetGet(t *testing.T) {
	f := &fakeRedis{data: map[string]string{}}
	c := NewRedisCache(f, 0)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "golang.org")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Result{URL: "https://icon.horse/icon/golang.org", Status: models.LogoStatusSuccess, Source: models.LogoSourceVerified}
	require.NoError(t, c.Set(ctx, "golang.org", want))
	assert.Equal(t, DefaultCacheTTL, f.ttl)
	assert.Contains(t, f.data, "vault:logo:golang.org")

	got, ok, err := c.Get(ctx, "golang.org")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRedisCache_Errors(t *testing.T) {
	f := &fakeRedis{data: map[string]string{"vault:logo:bad": "{not json"}}
	c := NewRedisCache(f, time.Minute)
	ctx := context.Background()

	_, _, err := c.Get(ctx, "bad")
	require.Error(t, err)

	f.getErr = errors.New("conn reset")
	_, _, err = c.Get(ctx, "x")
	assert.ErrorContains(t, err, "conn reset")

	f.setErr = errors.New("readonly")
	assert.ErrorContains(t, c.Set(ctx, "x", Result{}), "readonly")
}

// silentListener accepts connections and never answers on them.
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestResolve_SilentRedisStaysWithinBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// default client options: three retries with 3s read timeouts
	client := redis.NewClient(&redis.Options{Addr: silentListener(t)})
	defer client.Close()

	budget := 200 * time.Millisecond
	r := NewResolver(
		WithTimeout(budget),
		WithServices([]Service{svc("s", srv.URL, models.LogoSourceVerified)}),
		WithCache(NewRedisCache(client, 0)),
	)

	start := time.Now()
	res := r.ResolveDetailed(context.Background(), "totally-unknown-xyz123.test")
	elapsed := time.Since(start)

	assert.Equal(t, models.LogoStatusSuccess, res.Status)
	assert.Less(t, elapsed, 2*budget, "cache round trips must share the resolve budget")
}

func TestResolve_SilentRedisFallsBackWithinBudget(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: silentListener(t)})
	defer client.Close()

	budget := 200 * time.Millisecond
	r := NewResolver(WithTimeout(budget), WithServices(nil), WithCache(NewRedisCache(client, 0)))

	start := time.Now()
	res := r.ResolveDetailed(context.Background(), "totally-unknown-xyz123.test")

	assert.Less(t, time.Since(start), 2*budget)
	assert.Equal(t, models.LogoStatusFallback, res.Status)
	assert.Equal(t, Avatar("totally-unknown-xyz123.test"), res.URL)
}
