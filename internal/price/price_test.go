package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcher_Get(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ecash", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"ecash":{"usd":0.0000312}}`))
	})

	f := NewFetcher(Config{Endpoint: srv.URL, Rate: 100, Burst: 10}, nil)
	q := f.Get(context.Background())

	assert.False(t, q.Stale)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("0.0000312")), q.Price.String())
	assert.Equal(t, "usd", q.Currency)
}

func TestFetcher_FallsBackToDefault(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	def := decimal.RequireFromString("0.00003")
	f := NewFetcher(Config{Endpoint: srv.URL, Rate: 100, Burst: 10, Default: def}, nil)
	q := f.Get(context.Background())

	assert.True(t, q.Stale)
	assert.True(t, q.Price.Equal(def))
}

func TestFetcher_FallsBackToLastKnown(t *testing.T) {
	var fail atomic.Bool
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			_, _ = w.Write([]byte(`{"bitcoin":{"usd":1}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ecash":{"usd":"0.5"}}`))
	})

	f := NewFetcher(Config{Endpoint: srv.URL, Rate: 100, Burst: 10}, nil)
	first := f.Get(context.Background())
	require.False(t, first.Stale)

	fail.Store(true)
	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoQuote)

	q := f.Get(context.Background())
	assert.True(t, q.Stale)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, first.FetchedAt, q.FetchedAt)
}

func TestFetcher_Throttled(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ecash":{"usd":1}}`))
	})

	f := NewFetcher(Config{Endpoint: srv.URL, Rate: 0.001, Burst: 1}, nil)
	f.Get(context.Background())

	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrThrottled)

	q := f.Get(context.Background())
	assert.True(t, q.Stale)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetcher_Timeout(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	f := NewFetcher(Config{Endpoint: srv.URL, Rate: 100, Burst: 10, Timeout: 20 * time.Millisecond}, nil)
	start := time.Now()
	q := f.Get(context.Background())

	assert.True(t, q.Stale)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFiatValue(t *testing.T) {
	q := Quote{Price: decimal.RequireFromString("0.00003")}
	// 1,000,000 XEC
	v := FiatValue(100_000_000, q)
	assert.True(t, v.Equal(decimal.RequireFromString("30")), v.String())
}
