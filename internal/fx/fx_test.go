package fx

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

func TestFixedProvider(t *testing.T) {
	p := NewFixedProvider(decimal.NewFromInt(1380))

	rate, asOf, err := p.GetFXRate(context.Background(), "USD", "KRW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1380)) {
		t.Errorf("rate = %s", rate)
	}
	if time.Since(asOf) > time.Minute {
		t.Error("fixed rate as-of must be fresh so TTL checks never reject it")
	}
	if p.IsLive() {
		t.Error("fixed provider must not report live")
	}
}

func TestHTTPProvider(t *testing.T) {
	t.Run("fetch_and_cache", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{"rate": 1385.5}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(HTTPConfig{URL: srv.URL, RefreshInterval: time.Hour}, slog.New(slog.DiscardHandler))
		for i := 0; i < 3; i++ {
			rate, _, err := p.GetFXRate(context.Background(), "USD", "KRW")
			if err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
			if !rate.Equal(decimal.NewFromFloat(1385.5)) {
				t.Errorf("rate = %s", rate)
			}
		}
		if calls.Load() != 1 {
			t.Errorf("upstream hit %d times within the refresh interval, want 1", calls.Load())
		}
	})

	t.Run("error_with_no_cache", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		p := NewHTTPProvider(HTTPConfig{URL: srv.URL}, slog.New(slog.DiscardHandler))
		if _, _, err := p.GetFXRate(context.Background(), "USD", "KRW"); err == nil {
			t.Error("expected error when fetch fails with no cached rate")
		}
	})

	t.Run("stale_cache_served_with_true_as_of", func(t *testing.T) {
		var fail atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"rate": 1380}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(HTTPConfig{URL: srv.URL, RefreshInterval: time.Nanosecond}, slog.New(slog.DiscardHandler))
		_, firstAsOf, err := p.GetFXRate(context.Background(), "USD", "KRW")
		if err != nil {
			t.Fatalf("prime cache: %v", err)
		}

		fail.Store(true)
		time.Sleep(time.Millisecond)
		rate, asOf, err := p.GetFXRate(context.Background(), "USD", "KRW")
		if err != nil {
			t.Fatalf("expected cached rate, got error: %v", err)
		}
		if !rate.Equal(decimal.NewFromInt(1380)) {
			t.Errorf("rate = %s", rate)
		}
		if !asOf.Equal(firstAsOf) {
			t.Error("as-of must reflect the original fetch so TTL checks can reject staleness")
		}
	})

	t.Run("non_positive_rate_rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"rate": 0}`))
		}))
		defer srv.Close()

		p := NewHTTPProvider(HTTPConfig{URL: srv.URL}, slog.New(slog.DiscardHandler))
		if _, _, err := p.GetFXRate(context.Background(), "USD", "KRW"); err == nil {
			t.Error("expected error for non-positive rate")
		}
	})
}

func TestRequireLive(t *testing.T) {
	fixed := NewFixedProvider(decimal.NewFromInt(1380))
	if err := RequireLive(fixed, "live"); err != domain.ErrFixedFXInLiveMode {
		t.Errorf("want ErrFixedFXInLiveMode, got %v", err)
	}
	if err := RequireLive(fixed, "mock"); err != nil {
		t.Errorf("mock mode should accept a fixed provider: %v", err)
	}
}
