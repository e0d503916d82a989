package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewServerSeedsPresetsAndServes(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets.yaml")
	if err := os.WriteFile(presets, []byte("presets:\n  - name: Little kids\n    config:\n      choreRules:\n        points: {max: 20}\n"), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	server, closer, err := NewServer(context.Background(), Config{
		Addr:              ":0",
		DBPath:            filepath.Join(dir, "app.sqlite"),
		DefaultStrictness: "strict",
		PresetsFile:       presets,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer closer.Close()

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/families/fam-1/presets", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Little kids") {
		t.Fatalf("expected seeded preset, got %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/families/fam-1/validation-config", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"strictnessLevel":"strict"`) {
		t.Fatalf("expected strict default, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewServerRejectsBadStrictness(t *testing.T) {
	_, _, err := NewServer(context.Background(), Config{DBPath: filepath.Join(t.TempDir(), "x.sqlite"), DefaultStrictness: "extreme"})
	if err == nil {
		t.Fatal("expected invalid strictness error")
	}
}

func TestResourceCloserReturnsFirstError(t *testing.T) {
	calls := 0
	c := resourceCloser{closers: []io.Closer{nil, closerFunc(func() error { calls++; return errFirst }), closerFunc(func() error { calls++; return nil })}}
	if err := c.Close(); err != errFirst || calls != 2 {
		t.Fatalf("unexpected close result %v after %d calls", err, calls)
	}
}

var errFirst = errors.New("first")

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
