package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pfrederiksen/club-websites/internal/logger"
)

const (
	UserAgent      = "club-websites/1.0 (+github.com/pfrederiksen/club-websites)"
	DefaultTimeout = 8 * time.Second

	// maxRedirects is how many redirects are followed before giving up.
	maxRedirects = 30
	// maxDrain bounds how much of a body is read so the connection can be reused.
	maxDrain = 64 << 10
)

// Checker probes a single URL.
type Checker interface {
	Probe(ctx context.Context, url string) Outcome
}

// Prober checks website availability with one bounded GET per call.
type Prober struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// Option configures a Prober.
type Option func(*Prober)

// WithUserAgent sets the User-Agent header sent with every probe.
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithRateLimit caps probes at perSecond requests per second across all
// workers. Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(p *Prober) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTransport replaces the HTTP transport, keeping timeout and redirect
// policy.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Prober) {
		p.client.Transport = rt
	}
}

// New creates a Prober whose requests are bounded by timeout as a single
// ceiling covering connect, redirects and headers.
func New(timeout time.Duration, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Prober{
		client: &http.Client{
			Timeout:       timeout,
			CheckRedirect: redirectPolicy,
		},
		userAgent: UserAgent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func redirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
	}
	return nil
}

// Probe issues one GET to url. Any received response is a Success whatever
// its status code; every failure before a response is returned as a
// TransportError outcome.
func (p *Prober) Probe(ctx context.Context, url string) Outcome {
	start := time.Now()
	defer func() {
		logger.RecordTiming("probe.duration", time.Since(start))
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.failed(url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.IncrCounter("probe.error." + ErrKindInvalidURL)
		return TransportError(ErrKindInvalidURL, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return p.failed(url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	logger.IncrCounter("probe.response")
	return Success(resp.StatusCode, resp.Request.URL.String())
}

func (p *Prober) failed(url string, err error) Outcome {
	kind := Classify(err)
	logger.IncrCounter("probe.error." + kind)
	logger.Debug("Probe failed", logger.Fields{
		"url":  url,
		"kind": kind,
	})
	return TransportError(kind, err)
}
