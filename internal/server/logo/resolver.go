package logo

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const (
	DefaultTimeout = 3 * time.Second

	acceptHeader    = "image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
	userAgentHeader = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Service is one favicon provider raced by the Resolver.
type Service struct {
	Name   string
	URL    func(host string) string
	Source models.LogoSource
}

// DefaultServices lists the public favicon providers in preference order.
func DefaultServices() []Service {
	return []Service{
		{
			Name:   "icon.horse",
			URL:    func(h string) string { return "https://icon.horse/icon/" + h },
			Source: models.LogoSourceVerified,
		},
		{
			Name:   "google",
			URL:    func(h string) string { return "https://www.google.com/s2/favicons?domain=" + h + "&sz=128" },
			Source: models.LogoSourceGoogle,
		},
		{
			Name:   "maplecone",
			URL:    func(h string) string { return "https://favicon.api.maplecone.com/favicon/" + h },
			Source: models.LogoSourceVerified,
		},
		{
			Name:   "faviconkit",
			URL:    func(h string) string { return "https://api.faviconkit.com/" + h + "/128" },
			Source: models.LogoSourceVerified,
		},
	}
}

// Resolver implements logo resolution. The zero value is not usable; use NewResolver.
type Resolver struct {
	client   *http.Client
	timeout  time.Duration
	services []Service
	cache    Cache
	logger   logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the client used to probe favicon services.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithTimeout sets the overall budget for the service race.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithServices replaces the raced providers.
func WithServices(s []Service) Option {
	return func(r *Resolver) { r.services = s }
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver with DefaultServices and DefaultTimeout.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:   &http.Client{},
		timeout:  DefaultTimeout,
		services: DefaultServices(),
		logger:   logging.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns a logo URL for website. It never fails.
func (r *Resolver) Resolve(ctx context.Context, website string) string {
	return r.ResolveDetailed(ctx, website).URL
}

// ResolveDetailed is Resolve plus status and source.
func (r *Resolver) ResolveDetailed(ctx context.Context, website string) Result {
	host := Clean(website)
	if host == "" {
		return fallback("")
	}

	if u, ok := Known(host); ok {
		return Result{URL: u, Status: models.LogoStatusVerified, Source: models.LogoSourceDirect}
	}

	if r.cache != nil {
		cctx, cancel := r.cacheContext(ctx)
		res, ok, err := r.cache.Get(cctx, host)
		cancel()
		if err != nil {
			r.logger.Warn(ctx, "logo cache get failed", "host", host, "error", err)
		} else if ok {
			return res
		}
	}

	res, ok := r.race(ctx, host)
	if !ok {
		r.logger.Debug(ctx, "no favicon service answered, using avatar", "host", host)
		return fallback(host)
	}

	if r.cache != nil {
		cctx, cancel := r.cacheContext(ctx)
		if err := r.cache.Set(cctx, host, res); err != nil {
			r.logger.Warn(ctx, "logo cache set failed", "host", host, "error", err)
		}
		cancel()
	}
	return res
}

// cacheContext bounds one cache round trip to a quarter of the resolve budget.
func (r *Resolver) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout/4)
}

// race probes every service concurrently and returns the first success.
// Remaining probes are cancelled on return.
func (r *Resolver) race(ctx context.Context, host string) (Result, bool) {
	if len(r.services) == 0 {
		return Result{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make(chan Result, len(r.services))
	var wg sync.WaitGroup
	for _, svc := range r.services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			u := svc.URL(host)
			if r.probe(ctx, u) {
				results <- Result{URL: u, Status: models.LogoStatusSuccess, Source: svc.Source}
			}
		}(svc)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	select {
	case res, ok := <-results:
		return res, ok
	case <-ctx.Done():
		return Result{}, false
	}
}

func (r *Resolver) probe(ctx context.Context, u string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgentHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
