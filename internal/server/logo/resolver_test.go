package logo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func svc(name, base string, source models.LogoSource) Service {
	return Service{
		Name:   name,
		URL:    func(h string) string { return base + "/" + h },
		Source: source,
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string]Result
	sets int
}

func (m *memCache) Get(_ context.Context, host string) (Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[host]
	return r, ok, nil
}

func (m *memCache) Set(_ context.Context, host string, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[host] = r
	m.sets++
	return nil
}

func TestClean(t *testing.T) {
	tests := []struct{ in, want string }{
		{"github.com", "github.com"},
		{"  HTTPS://WWW.GitHub.com/login?next=/ ", "github.com"},
		{"http://example.org#frag", "example.org"},
		{"www.site.io/path", "site.io"},
		{"", ""},
		{"   ", ""},
		{"https://", ""},
		{"sub.domain.test?x=1", "sub.domain.test"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), "Clean(%q)", tt.in)
	}
}

func TestResolve_KnownSiteNoNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	r := NewResolver(WithServices([]Service{svc("s", srv.URL, models.LogoSourceVerified)}))
	res := r.ResolveDetailed(context.Background(), "https://www.github.com/octocat")

	assert.Equal(t, "https://github.githubassets.com/favicons/favicon.svg", res.URL)
	assert.Equal(t, models.LogoStatusVerified, res.Status)
	assert.Equal(t, models.LogoSourceDirect, res.Source)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestResolve_EmptyWebsite(t *testing.T) {
	r := NewResolver(WithServices(nil))
	assert.Equal(t, "https://ui-avatars.com/api/?name=Unknown&background=random&size=128", r.Resolve(context.Background(), "  "))
}

func TestResolve_AllServicesFailGivesAvatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(WithServices([]Service{
		svc("a", srv.URL, models.LogoSourceVerified),
		svc("b", srv.URL, models.LogoSourceGoogle),
	}))

	res := r.ResolveDetailed(context.Background(), "totally-unknown-xyz123.test")
	assert.Equal(t, "https://ui-avatars.com/api/?name=totally-unknown-xyz123.test&background=random&size=128", res.URL)
	assert.Equal(t, models.LogoStatusFallback, res.Status)
	assert.Equal(t, models.LogoSourceFallback, res.Source)
}

func TestResolve_UnreachableServices(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewResolver(WithServices([]Service{svc("dead", url, models.LogoSourceVerified)}))
	res := r.ResolveDetailed(context.Background(), "nowhere.test")
	assert.Equal(t, models.LogoStatusFallback, res.Status)
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	var (
		mu               sync.Mutex
		gotUA, gotAccept string
	)
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()

	r := NewResolver(WithServices([]Service{
		svc("slow", slow.URL, models.LogoSourceVerified),
		svc("fast", fast.URL, models.LogoSourceGoogle),
	}))

	start := time.Now()
	res := r.ResolveDetailed(context.Background(), "golang.org")
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, fast.URL+"/golang.org", res.URL)
	assert.Equal(t, models.LogoStatusSuccess, res.Status)
	assert.Equal(t, models.LogoSourceGoogle, res.Source)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, acceptHeader, gotAccept)
}

func TestResolve_TimeoutBudget(t *testing.T) {
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer hang.Close()

	r := NewResolver(
		WithTimeout(150*time.Millisecond),
		WithServices([]Service{
			svc("a", hang.URL, models.LogoSourceVerified),
			svc("b", hang.URL, models.LogoSourceVerified),
		}),
	)

	start := time.Now()
	res := r.ResolveDetailed(context.Background(), "slow.test")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, models.LogoStatusFallback, res.Status)
}

func TestResolve_UsesCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cache := &memCache{data: map[string]Result{}}
	r := NewResolver(WithCache(cache), WithServices([]Service{svc("a", srv.URL, models.LogoSourceVerified)}))

	first := r.ResolveDetailed(context.Background(), "cached.test")
	second := r.ResolveDetailed(context.Background(), "https://www.cached.test/")
	require.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 1, cache.sets)
}

func TestResolve_FallbackNotCached(t *testing.T) {
	cache := &memCache{data: map[string]Result{}}
	r := NewResolver(WithCache(cache), WithServices(nil))

	res := r.ResolveDetailed(context.Background(), "x.test")
	assert.Equal(t, models.LogoStatusFallback, res.Status)
	assert.Zero(t, cache.sets)
}

func TestDefaultServices(t *testing.T) {
	s := DefaultServices()
	require.Len(t, s, 4)
	assert.Equal(t, "https://icon.horse/icon/a.io", s[0].URL("a.io"))
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=a.io&sz=128", s[1].URL("a.io"))
	assert.Equal(t, models.LogoSourceGoogle, s[1].Source)
	assert.Equal(t, "https://favicon.api.maplecone.com/favicon/a.io", s[2].URL("a.io"))
	assert.Equal(t, "https://api.faviconkit.com/a.io/128", s[3].URL("a.io"))
}
