package observability

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricValue returns the value of the named counter or gauge whose labels
// match the given pairs, or -1 if absent.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue next
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
		}
	}
	return -1
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.StreamConnected()
	m.StreamFailed(time.Second)
	m.FrameReceived("create")
	m.WatchlistLoaded(3, nil)
	m.WatchlistMatched()
	m.AlertSent(nil)
	m.CallbackReceived("sweep")
	m.TradeFinished("buy", "none", time.Second)
	m.ObserveCall("build", time.Second)
	m.WalletProvisioned()
	if !m.LastFrame().IsZero() {
		t.Error("nil metrics should report zero last frame")
	}
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.FrameReceived("create")
	m.FrameReceived("decode_error")
	m.WatchlistLoaded(5, nil)
	m.WatchlistLoaded(0, errors.New("boom"))
	m.TradeFinished("buy", "account_not_found", 10*time.Millisecond)

	if got := metricValue(t, reg, "test_stream_create_events_total"); got != 1 {
		t.Errorf("expected 1 create event, got %v", got)
	}
	if got := metricValue(t, reg, "test_watchlist_entries"); got != 5 {
		t.Errorf("expected watchlist size 5, got %v", got)
	}
	if got := metricValue(t, reg, "test_watchlist_refresh_total", "status", "error"); got != 1 {
		t.Errorf("expected 1 refresh error, got %v", got)
	}
	if got := metricValue(t, reg, "test_trading_trades_total", "action", "buy", "class", "account_not_found"); got != 1 {
		t.Errorf("expected 1 trade, got %v", got)
	}
	if m.LastFrame().IsZero() {
		t.Error("expected last frame to be set")
	}
}

func TestMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.StreamConnected()

	srv := httptest.NewServer(NewMux(m, reg, time.Now()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %q", health.Status)
	}

	resp2, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp2.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp2.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(buf.String(), "test_stream_connects_total 1") {
		t.Errorf("metrics output missing connects counter")
	}
}
