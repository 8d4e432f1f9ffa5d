package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pivot-itm-bot/internal/dashboard"
	"pivot-itm-bot/internal/types"
)

func TestStateFromDashboard(t *testing.T) {
	state := dashboard.NewState(10, 10)
	state.RecordStrategyStatus(dashboard.StatusWaitingForBias)
	state.RecordEvent("Pivot calculated: 18500.00")
	state.RecordTradeEntered(types.Position{Symbol: "NIFTY2630518400CE", Direction: types.DirectionCall, EntryPrice: 121, Quantity: 65})

	srv := httptest.NewServer(dashboard.NewServer(state, "").Handler())
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	snap, err := c.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if snap.StrategyStatus != dashboard.StatusInTrade {
		t.Errorf("status = %s, want %s", snap.StrategyStatus, dashboard.StatusInTrade)
	}
	if snap.CurrentTrade == nil || snap.CurrentTrade.Symbol != "NIFTY2630518400CE" {
		t.Errorf("current trade = %+v", snap.CurrentTrade)
	}
	if len(snap.Events) == 0 {
		t.Error("expected events in snapshot")
	}

	status, err := c.Health(context.Background())
	if err != nil || status != "ok" {
		t.Errorf("Health = %q, %v", status, err)
	}
}

func TestRetryUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(&RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}))
	status, err := c.Health(context.Background())
	if err != nil || status != "ok" {
		t.Fatalf("Health = %q, %v", status, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(&RetryConfig{MaxAttempts: 1}))
	_, err := c.State(context.Background())
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("err = %v, want HTTP 404", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"127.0.0.1:5000", "http://127.0.0.1:5000"},
		{"http://localhost:5000/", "http://localhost:5000"},
		{"https://bot.internal", "https://bot.internal"},
	}
	for _, tt := range tests {
		if got := normalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
