package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestProxyFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("# Title\nSome data and more data."))
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	f, err := New(Config{Mode: ModeProxy, ProxyBaseURL: srv.URL + "/", Retry: fastRetry()}, m)
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), "https://datatalks.club/")
	require.NoError(t, err)
	assert.Equal(t, "/https://datatalks.club/", gotPath)
	assert.Equal(t, "https://datatalks.club/", page.URL)
	assert.Contains(t, page.Content, "more data")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRequestsTotal.WithLabelValues("proxy", "ok")))
}

func TestDirectFetch_StripsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><style>p{}</style><script>var data=1</script></head>
<body><h1>Hello</h1><p>Data   engineering</p></body></html>`))
	}))
	defer srv.Close()

	f, err := New(Config{Mode: ModeDirect, Retry: fastRetry()}, nil)
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Hello\nData engineering", page.Content)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, err := New(Config{Mode: ModeDirect, Retry: fastRetry()}, nil)
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", page.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	f, err := New(Config{Mode: ModeDirect, Retry: fastRetry()}, m)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRequestsTotal.WithLabelValues("direct", "error")))
}

func TestFetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, err := New(Config{Mode: ModeDirect, Retry: fastRetry()}, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
}

func TestFetch_InvalidURL(t *testing.T) {
	f, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeProxy, f.Mode())

	for _, u := range []string{"", "   ", "ftp://example.com", "not a url", "https://"} {
		_, err := f.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, u)
	}
}

func TestNew_UnknownMode(t *testing.T) {
	_, err := New(Config{Mode: "telepathy"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestHTMLText(t *testing.T) {
	text, err := HTMLText([]byte(`<ul><li>one</li><li>two <b>three</b></li></ul><noscript>hidden</noscript>`))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo three", text)
}

func TestFetch_OversizedBodyRejected(t *testing.T) {
	var calls atomic.Int32
	body := "data data data data"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f, err := New(Config{Mode: ModeDirect, MaxBodyBytes: int64(len(body)) - 1, Retry: fastRetry()}, nil)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Equal(t, int32(1), calls.Load())

	f, err = New(Config{Mode: ModeDirect, MaxBodyBytes: int64(len(body)), Retry: fastRetry()}, nil)
	require.NoError(t, err)
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, body, page.Content)
}
