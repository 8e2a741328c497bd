package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/csvcache/internal/config"
	"github.com/JonMunkholm/csvcache/internal/source"
)

func newTestService(t *testing.T, modify func(*config.Config)) *Service {
	t.Helper()
	cfg := config.Defaults()
	if modify != nil {
		modify(cfg)
	}
	return NewService(newTestCache(), cfg)
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestService_LoadText(t *testing.T) {
	svc := newTestService(t, nil)

	ds, err := svc.LoadText(context.Background(), "sales", "Region,Units\nNorth,10\nSouth\n")
	if err != nil {
		t.Fatalf("LoadText() error = %v", err)
	}
	if ds.RowCount != 1 || len(ds.Errors) != 1 {
		t.Errorf("RowCount = %d, errors = %d, want 1 and 1", ds.RowCount, len(ds.Errors))
	}
	if ds.Source != InlineSource {
		t.Errorf("Source = %q, want %q", ds.Source, InlineSource)
	}

	got, err := svc.Cache().Get("sales", 0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LoadID != ds.LoadID {
		t.Error("cache should hold the dataset just loaded")
	}
}

func TestService_LoadText_InvalidName(t *testing.T) {
	svc := newTestService(t, nil)

	for _, name := range []string{"", "   ", "a/b", `a\b`, "tab\tname"} {
		_, err := svc.LoadText(context.Background(), name, "a\n1\n")
		if err == nil {
			t.Errorf("LoadText(%q) expected error", name)
			continue
		}
		if MapError(err).Code != "DS002" {
			t.Errorf("LoadText(%q) error %v maps to %s, want DS002", name, err, MapError(err).Code)
		}
	}
	if svc.Cache().Len() != 0 {
		t.Error("invalid names should not reach the cache")
	}
}

func TestService_LoadText_TooLarge(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) { c.Load.MaxFileSize = 8 })

	_, err := svc.LoadText(context.Background(), "big", "a,b\n1,2\n3,4\n")
	if !errors.Is(err, source.ErrFileTooLarge) {
		t.Fatalf("LoadText() error = %v, want ErrFileTooLarge", err)
	}
	if MapError(err).Code != "FILE001" {
		t.Errorf("code = %s, want FILE001", MapError(err).Code)
	}
}

func TestService_LoadText_Busy(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) {
		c.Load.MaxConcurrent = 1
		c.Load.MaxWaitTime = 20 * time.Millisecond
	})

	if !svc.limiter.TryAcquire() {
		t.Fatal("could not take the only slot")
	}
	defer svc.limiter.Release()

	_, err := svc.LoadText(context.Background(), "x", "a\n1\n")
	if !errors.Is(err, ErrTooManyLoads) {
		t.Fatalf("LoadText() error = %v, want ErrTooManyLoads", err)
	}
	if status := svc.LimiterStatus(); status.Active != 1 || status.Available != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestService_LoadText_Canceled(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.LoadText(ctx, "x", "a\n1\n")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("LoadText() error = %v, want context.Canceled", err)
	}
	if _, err := svc.Cache().Get("x", 0); !errors.Is(err, ErrDatasetNotFound) {
		t.Error("canceled load should not publish")
	}
}

func TestService_LoadText_SameNameConcurrent(t *testing.T) {
	svc := newTestService(t, nil)
	texts := []string{"a\n1\n", "a\n1\n2\n", "a\n1\n2\n3\n"}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.LoadText(context.Background(), "shared", texts[i%len(texts)]); err != nil {
				t.Errorf("LoadText() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	ds, err := svc.Cache().Get("shared", 0)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ds.RowCount < 1 || ds.RowCount > 3 || len(ds.Records) != ds.RowCount {
		t.Errorf("unexpected final dataset: RowCount %d, records %d", ds.RowCount, len(ds.Records))
	}

	svc.mu.Lock()
	leftover := len(svc.names)
	svc.mu.Unlock()
	if leftover != 0 {
		t.Errorf("%d name locks left after loads finished", leftover)
	}

	if err := svc.WaitForLoads(context.Background()); err != nil {
		t.Errorf("WaitForLoads() error = %v", err)
	}
}

func TestService_LoadPath_PartialSuccess(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "sales.csv"), "Region,Units\nNorth,10\n")
	writeTestFile(t, filepath.Join(dir, "more", "stock.csv"), "sku,qty\nA1,3\nB2,4\n")
	writeTestFile(t, filepath.Join(dir, "broken.csv.gz"), "this is not gzip")
	writeTestFile(t, filepath.Join(dir, "readme.txt"), "ignored")

	svc := newTestService(t, nil)

	report, err := svc.LoadPath(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadPath() error = %v", err)
	}

	if len(report.Loaded) != 2 {
		t.Errorf("loaded %d datasets, want 2: %+v", len(report.Loaded), report.Loaded)
	}
	if len(report.Failed) != 1 || report.Failed[0].Name != "broken" {
		t.Errorf("failed = %+v, want broken", report.Failed)
	}

	stock, err := svc.Cache().Get("stock", 0)
	if err != nil {
		t.Fatalf("Get(stock) error = %v", err)
	}
	if stock.RowCount != 2 || !strings.HasSuffix(stock.Source, "stock.csv") {
		t.Errorf("stock = %+v", stock)
	}
	if _, err := svc.Cache().Get("broken", 0); !errors.Is(err, ErrDatasetNotFound) {
		t.Error("failed file should not be cached")
	}
}

func TestService_LoadPath_Errors(t *testing.T) {
	svc := newTestService(t, nil)

	if _, err := svc.LoadPath(context.Background(), ""); !errors.Is(err, ErrMissingPath) {
		t.Errorf("LoadPath(\"\") error = %v, want ErrMissingPath", err)
	}

	_, err := svc.LoadPath(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("LoadPath() expected error for missing path")
	}
	if MapError(err).Code != "SRC003" {
		t.Errorf("code = %s, want SRC003 (%v)", MapError(err).Code, err)
	}
}

func TestService_LoadPath_SharedInFlight(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.csv"), "x\n1\n")

	svc := newTestService(t, nil)

	var wg sync.WaitGroup
	reports := make([]*LoadReport, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.LoadPath(context.Background(), dir+string(filepath.Separator))
			if err != nil {
				t.Errorf("LoadPath() error = %v", err)
				return
			}
			reports[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range reports {
		if r == nil || len(r.Loaded) != 1 {
			t.Errorf("report = %+v, want one loaded dataset", r)
		}
	}
}

func TestService_LoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "data", "orders.csv"), "id,total\n1,9.5\n")
	writeTestFile(t, filepath.Join(dir, "data", "nested", "items.csv"), "sku\nA\nB\n")
	manifest := filepath.Join(dir, "sources.yaml")
	writeTestFile(t, manifest, `sources:
  - path: data/orders.csv
    name: orders_2024
  - path: data/nested
  - path: data/missing.csv
`)

	svc := newTestService(t, nil)

	report, err := svc.LoadManifest(context.Background(), manifest)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if len(report.Loaded) != 2 {
		t.Errorf("loaded = %+v, want 2", report.Loaded)
	}
	if len(report.Failed) != 1 || !strings.HasSuffix(report.Failed[0].Path, "missing.csv") {
		t.Errorf("failed = %+v, want missing.csv", report.Failed)
	}

	if _, err := svc.Cache().Get("orders_2024", 0); err != nil {
		t.Errorf("renamed dataset not cached: %v", err)
	}
	if _, err := svc.Cache().Get("items", 0); err != nil {
		t.Errorf("directory dataset not cached: %v", err)
	}
}

func TestService_PreviewRows(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) { c.Load.PreviewRows = 12 })
	if svc.PreviewRows() != 12 {
		t.Errorf("PreviewRows() = %d, want 12", svc.PreviewRows())
	}

	svc = NewService(NewCache(), nil)
	if svc.PreviewRows() != DefaultPreviewRows {
		t.Errorf("PreviewRows() = %d, want %d", svc.PreviewRows(), DefaultPreviewRows)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"sales", false},
		{"sales_2024", false},
		{"Q1 report", false},
		{"book_Sheet1", false},
		{"", true},
		{" ", true},
		{"../etc", true},
		{"a\\b", true},
		{"line\nbreak", true},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.name, err)
		}
	}
}
