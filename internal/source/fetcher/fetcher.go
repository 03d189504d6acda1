// Package fetcher retrieves the readable text of remote web pages, either
// through a reader proxy that renders pages to text or by fetching the page
// directly and stripping its HTML.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const (
	ModeProxy  = "proxy"
	ModeDirect = "direct"

	DefaultProxyBaseURL = "https://r.jina.ai"
)

// Page is the text of one fetched URL.
type Page struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Fetcher returns the readable content of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

type Config struct {
	Mode         string
	ProxyBaseURL string
	Timeout      time.Duration
	MaxBodyBytes int64
	Retry        resilience.RetryConfig
	Breaker      resilience.CircuitBreakerConfig
}

// HTTPFetcher implements Fetcher over net/http with retries and a circuit
// breaker around each attempt.
type HTTPFetcher struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds an HTTPFetcher. m may be nil.
func New(cfg Config, m *metrics.Metrics) (*HTTPFetcher, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeProxy
	case ModeProxy, ModeDirect:
	default:
		return nil, apperrors.E("fetcher", apperrors.ErrConfiguration, "unknown fetch mode %q", cfg.Mode)
	}
	if cfg.ProxyBaseURL == "" {
		cfg.ProxyBaseURL = DefaultProxyBaseURL
	}
	cfg.ProxyBaseURL = strings.TrimRight(cfg.ProxyBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 20 << 20
	}
	cfg.Retry.Retryable = retryable
	cfg.Breaker.IsFailure = retryable
	if m != nil {
		cfg.Breaker.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &HTTPFetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker("fetch-"+cfg.Mode, cfg.Breaker),
		metrics: m,
		logger:  slog.Default().With("component", "fetcher", "mode", cfg.Mode),
	}, nil
}

func (f *HTTPFetcher) Mode() string { return f.cfg.Mode }

// Fetch returns the text behind rawURL. Only http and https URLs are
// accepted.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var content string
	err = resilience.Retry(ctx, "fetch", f.cfg.Retry, func() error {
		return f.breaker.Execute(func() error {
			var attemptErr error
			content, attemptErr = f.fetchOnce(ctx, target)
			return attemptErr
		})
	})
	f.observe(start, err)
	if err != nil {
		f.logger.Warn("fetch failed", "url", target, "error", err)
		return nil, classify(target, err)
	}

	f.logger.Debug("fetched page", "url", target, "chars", len(content), "duration", time.Since(start))
	return &Page{URL: target, Content: content}, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, target string) (string, error) {
	reqURL := target
	if f.cfg.Mode == ModeProxy {
		reqURL = f.cfg.ProxyBaseURL + "/" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &permanentError{err: err}
	}
	if f.cfg.Mode == ModeDirect {
		req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: target, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return "", &permanentError{err: fmt.Errorf("body of %s exceeds %d bytes", target, f.cfg.MaxBodyBytes)}
	}
	if f.cfg.Mode == ModeDirect && strings.Contains(resp.Header.Get("Content-Type"), "html") {
		text, err := HTMLText(body)
		if err != nil {
			return "", &permanentError{err: fmt.Errorf("parsing html: %w", err)}
		}
		return text, nil
	}
	return string(body), nil
}

func (f *HTTPFetcher) observe(start time.Time, err error) {
	if f.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	f.metrics.FetchRequestsTotal.WithLabelValues(f.cfg.Mode, result).Inc()
	f.metrics.FetchLatency.WithLabelValues(f.cfg.Mode).Observe(time.Since(start).Seconds())
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// retryable treats 4xx other than 429 as final; everything else may be
// transient.
func retryable(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout
	}
	return !errors.Is(err, context.Canceled)
}

func classify(target string, err error) error {
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.Code == http.StatusTooManyRequests:
		return apperrors.E("fetch", apperrors.ErrRateLimited, "%s: %v", target, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.E("fetch", apperrors.ErrTimeout, "%s: %v", target, err)
	default:
		return apperrors.E("fetch", apperrors.ErrSourceUnavailable, "%s: %v", target, err)
	}
}

func validateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", apperrors.E("fetch", apperrors.ErrInvalidArgument, "url must not be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", apperrors.E("fetch", apperrors.ErrInvalidArgument, "parsing url %q: %v", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperrors.E("fetch", apperrors.ErrInvalidArgument, "url %q must use http or https", rawURL)
	}
	if u.Host == "" {
		return "", apperrors.E("fetch", apperrors.ErrInvalidArgument, "url %q has no host", rawURL)
	}
	return u.String(), nil
}
