package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"humans/internal/blob"
	"humans/internal/config"
	"humans/internal/core"
	"humans/pkg/domain"
)

// setEnv points the commands at temp storage and clears inherited settings.
func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	env := map[string]string{
		"HUMANS_STORAGE_DRIVER":   "sqlite",
		"HUMANS_SQLITE_PATH":      filepath.Join(dir, "humans.db"),
		"HUMANS_BLOB_DRIVER":      "fs",
		"HUMANS_BLOB_FS_ROOT":     filepath.Join(dir, "blobs"),
		"HUMANS_LOG_LEVEL":        "error",
		"HUMANS_HTTP_ADDR":        "127.0.0.1:0",
		"HUMANS_SHUTDOWN_TIMEOUT": "2s",
		"HUMANS_POSTGRES_DSN":     "",
		"HUMANS_BLOB_S3_BUCKET":   "",
	}
	for k, v := range overrides {
		env[k] = v
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateThenSearchCities(t *testing.T) {
	setEnv(t, nil)

	out, err := execute(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema applied (sqlite)") {
		t.Fatalf("unexpected migrate output %q", out)
	}

	ctx := context.Background()
	store, err := core.OpenPersistentStore(ctx, core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: os.Getenv("HUMANS_SQLITE_PATH")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := core.NewService(store)
	if _, _, err := svc.ResolveRouteInterest(ctx, domain.RouteKey{OriginCity: "London", OriginCountry: "UK", DestinationCity: "Paris", DestinationCountry: "France"}); err != nil {
		t.Fatalf("seed route: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, err = execute(t, "cities", "lon", "--verbose")
	if err != nil {
		t.Fatalf("cities: %v", err)
	}
	var cities []domain.CityCandidate
	if err := json.Unmarshal([]byte(out), &cities); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(cities) != 1 || cities[0] != (domain.CityCandidate{City: "London", Country: "UK"}) {
		t.Fatalf("unexpected cities %+v", cities)
	}

	if _, err := execute(t, "cities"); err == nil {
		t.Fatalf("expected missing query argument error")
	}
}

func TestExportCommandWritesReport(t *testing.T) {
	setEnv(t, map[string]string{"HUMANS_STORAGE_DRIVER": "memory"})

	out, err := execute(t, "export", "--format", "json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var info blob.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !strings.HasPrefix(info.Key, "exports/route-interests/") || info.ContentType != "application/json" {
		t.Fatalf("unexpected export info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("HUMANS_BLOB_FS_ROOT"), filepath.FromSlash(info.Key))); err != nil {
		t.Fatalf("expected report on disk: %v", err)
	}

	if _, err := execute(t, "export", "--format", "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestInvalidConfigurationFailsEarly(t *testing.T) {
	setEnv(t, map[string]string{"HUMANS_STORAGE_DRIVER": "mongo"})
	if _, err := execute(t, "migrate"); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	setEnv(t, map[string]string{"HUMANS_STORAGE_DRIVER": "memory", "HUMANS_BLOB_DRIVER": "memory"})
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	a := &app{cfg: cfg, logger: zap.NewNop()}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + listener.Addr().String()
	traceFile := filepath.Join(t.TempDir(), "trace.jsonl")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, listener, traceFile) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Post(base+"/api/route-interests", "application/json",
		strings.NewReader(`{"originCity":"Oslo","originCountry":"Norway","destinationCity":"Rome","destinationCountry":"Italy"}`))
	if err != nil {
		t.Fatalf("post route: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = client.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	for _, want := range []string{
		`humans_core_operations_total{operation="resolve_route_interest",status="success"} 1`,
		`humans_http_requests_total{method="POST",route="/api/route-interests",status="201"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}

	trace, err := os.ReadFile(traceFile)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(trace), `"operation":"resolve_route_interest"`) {
		t.Fatalf("expected span in trace file, got %s", trace)
	}
}

func TestServeClosesListenerWhenSetupFails(t *testing.T) {
	setEnv(t, map[string]string{"HUMANS_STORAGE_DRIVER": "memory", "HUMANS_BLOB_DRIVER": "memory"})
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Blob.Driver = "tape"
	a := &app{cfg: cfg, logger: zap.NewNop()}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := a.serve(context.Background(), listener, ""); err == nil || !strings.Contains(err.Error(), "open blob store") {
		t.Fatalf("expected blob store error, got %v", err)
	}
	if _, err := listener.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("expected closed listener, got %v", err)
	}
}
