package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/session"
)

func TestConnectionStateIsOneHot(t *testing.T) {
	m := New()
	m.SetConnectionState("open")
	m.SetConnectionState("connecting")
	if v := testutil.ToFloat64(m.ConnectionState.WithLabelValues("connecting")); v != 1 {
		t.Fatalf("connecting=%v", v)
	}
	if v := testutil.ToFloat64(m.ConnectionState.WithLabelValues("open")); v != 0 {
		t.Fatalf("open=%v", v)
	}
}

func TestObserveStateAndHandler(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	m := New()
	s := session.New(cat, session.Options{})
	m.ObserveState(s)
	if v := testutil.ToFloat64(m.Objectives.WithLabelValues("total")); int(v) != cat.Len() {
		t.Fatalf("total=%v want %d", v, cat.Len())
	}
	m.Messages.WithLabelValues("RoomInfo").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `celeste_tracker_messages_received_total{cmd="RoomInfo"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}
