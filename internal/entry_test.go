package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/deepdish/internal/notify"
)

func memoryConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Database = DatabaseConfig{Driver: DatabaseMemory}
	return cfg
}

func TestOpenBackendsMemory(t *testing.T) {
	b, err := openBackends(context.Background(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.notifier.(notify.Stub); !ok {
		t.Errorf("notifier = %T, want notify.Stub", b.notifier)
	}
	if b.publisher != nil {
		t.Error("stub messaging must not start a publisher")
	}
}

func TestOpenBackendsSQLite(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "deepdish.db")
	b, err := openBackends(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.ready(context.Background()); err != nil {
		t.Errorf("ready: %v", err)
	}
}

func TestOpenBackendsUnknownDriver(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Database.Driver = "oracle"
	if _, err := openBackends(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}

func TestRootRouter(t *testing.T) {
	b, err := openBackends(context.Background(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	router := newRootRouter(b)

	for _, path := range []string{"/health/live", "/health/ready", "/api/ingredient", "/api/recipe"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingredient",
		strings.NewReader(`{"name":"Egg","description":"hen","diet_violations":["vegan"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("POST /api/ingredient = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestReadinessReportsBackendFailure(t *testing.T) {
	b, err := openBackends(context.Background(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.ready = func(context.Context) error { return errors.New("db down") }
	w := httptest.NewRecorder()
	newRootRouter(b).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready = %d, want 503", w.Code)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}
