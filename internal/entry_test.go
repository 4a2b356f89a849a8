package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/blitlinks/internal/linkservice"
	"github.com/starford/blitlinks/internal/metrics"
	"github.com/starford/blitlinks/internal/models"
	"github.com/starford/blitlinks/internal/sse"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Store.SupportDir = t.TempDir()
	cfg.Watch.Enabled = false
	return cfg
}

func testEngine(t *testing.T, opts ...linkservice.Option) *Engine {
	t.Helper()
	logger := NewLogger(io.Discard, slog.LevelError)
	eng, err := OpenEngine(context.Background(), testConfig(t), logger, opts...)
	if err != nil {
		t.Fatalf("OpenEngine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestHTTPHandler_Health(t *testing.T) {
	h := NewHTTPHandler(testEngine(t), nil, nil)
	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}

func TestHTTPHandler_ReadyFailsWhenStoreClosed(t *testing.T) {
	eng := testEngine(t)
	h := NewHTTPHandler(eng, nil, nil)
	eng.Close()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHTTPHandler_APIAndMetrics(t *testing.T) {
	m := metrics.New()
	broker := sse.NewBroker(0)
	defer broker.Close()
	eng := testEngine(t, linkservice.WithMetrics(m), linkservice.WithChangeHook(broker.PublishLinkEvent))
	h := NewHTTPHandler(eng, broker, m)

	body := bytes.NewBufferString(`{"title":"Go","link":"https://go.dev","shortcut":"go"}`)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/links", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/links?q=go", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"shortcut":"go"`) {
		t.Fatalf("search status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := w.Body.String()
	for _, name := range []string{"blitlinks_search_queries_total", "blitlinks_writes_total"} {
		if !strings.Contains(out, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestOpenEngine_SyncsExistingDatabase(t *testing.T) {
	cfg := testConfig(t)
	logger := NewLogger(io.Discard, slog.LevelError)

	eng, err := OpenEngine(context.Background(), cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Service.Save(context.Background(), 0, models.Fields{Title: "persisted"}); err != nil {
		t.Fatal(err)
	}
	eng.Close()

	eng, err = OpenEngine(context.Background(), cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()
	got, err := eng.Service.Search(context.Background(), "pers")
	if err != nil || len(got) != 1 {
		t.Fatalf("Search after reopen = %v, %v", got, err)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
	if err := RunMCP(context.Background()); err == nil {
		t.Fatal("RunMCP without config should fail")
	}
}
