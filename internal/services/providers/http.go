package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"CryptoPulse/internal/domain/service"
	"CryptoPulse/pkg/cache"
	xhttp "CryptoPulse/pkg/http"

	"golang.org/x/time/rate"
)

var _ service.SignalProvider = (*HTTPProvider)(nil)

// ErrNotConfigured is returned by providers without a base URL.
var ErrNotConfigured = errors.New("provider: base url not configured")

type signalResponse struct {
	Signal *float64 `json:"signal"`
}

type Option func(*HTTPProvider)

// WithCache memoizes readings per symbol for ttl.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(p *HTTPProvider) {
		p.cache, p.ttl = c, ttl
	}
}

// WithRateLimit paces outbound requests.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *HTTPProvider) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// HTTPProvider fetches GET {baseURL}/{symbol} and reads {"signal": x}.
type HTTPProvider struct {
	name    string
	baseURL string
	client  *xhttp.Client
	limiter *rate.Limiter
	cache   cache.Service
	ttl     time.Duration
}

func NewHTTPProvider(name, baseURL string, timeout time.Duration, opts ...Option) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	p := &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Signal(ctx context.Context, symbol string) (float64, error) {
	if p.baseURL == "" {
		return 0, ErrNotConfigured
	}
	key := cache.Key("provider", p.name, symbol)
	if p.cache != nil {
		var v float64
		if err := p.cache.Get(ctx, key, &v); err == nil {
			return v, nil
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("%s: rate limit: %w", p.name, err)
		}
	}

	var resp signalResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.baseURL + "/" + url.PathEscape(symbol),
		Headers: map[string]string{"Accept": "application/json"},
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", p.name, symbol, err)
	}
	if resp.Signal == nil {
		return 0, fmt.Errorf("%s %s: response has no signal", p.name, symbol)
	}

	if p.cache != nil && p.ttl > 0 {
		_ = p.cache.Set(ctx, key, *resp.Signal, p.ttl)
	}
	return *resp.Signal, nil
}
