package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/JonMunkholm/csvcache/internal/config"
	"github.com/JonMunkholm/csvcache/internal/logging"
	"github.com/JonMunkholm/csvcache/internal/source"
	"golang.org/x/sync/singleflight"
)

// InlineSource is the Dataset.Source recorded for text loaded directly.
const InlineSource = "inline"

var (
	// ErrMissingPath is returned by LoadPath when no path is given.
	ErrMissingPath = errors.New("missing path")

	// ErrInvalidName is returned for dataset names that cannot be used in a URL path.
	ErrInvalidName = errors.New("invalid dataset name")
)

// Service loads datasets into a Cache. It bounds parse concurrency, serializes
// loads of the same name, and reads files through the source package.
type Service struct {
	cache   *Cache
	limiter *LoadLimiter
	audit   *AuditLog
	cfg     config.LoadConfig

	flight singleflight.Group

	mu    sync.Mutex
	names map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

// LoadSummary describes one dataset published by a load.
type LoadSummary struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	LoadID      string `json:"load_id"`
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
	ErrorCount  int    `json:"error_count"`
}

// LoadFailure describes a file that produced no dataset.
type LoadFailure struct {
	Name   string `json:"name,omitempty"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// LoadReport is the outcome of LoadPath or LoadManifest. A load succeeds
// partially when Loaded and Failed are both non-empty.
type LoadReport struct {
	Path       string        `json:"path"`
	Loaded     []LoadSummary `json:"loaded"`
	Failed     []LoadFailure `json:"failed"`
	DurationMS int64         `json:"duration_ms"`
}

func (r *LoadReport) merge(other *LoadReport) {
	r.Loaded = append(r.Loaded, other.Loaded...)
	r.Failed = append(r.Failed, other.Failed...)
}

// NewService creates a Service that publishes into cache. A nil cfg uses
// config defaults.
func NewService(cache *Cache, cfg *config.Config) *Service {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &Service{
		cache:   cache,
		limiter: NewLoadLimiter(cfg.Load.MaxConcurrent, cfg.Load.MaxWaitTime),
		audit:   NewAuditLog(cfg.Load.AuditLogSize),
		cfg:     cfg.Load,
		names:   make(map[string]*nameLock),
	}
}

// Cache returns the cache the service publishes into.
func (s *Service) Cache() *Cache {
	return s.cache
}

// AuditLog returns the record of recent load attempts.
func (s *Service) AuditLog() *AuditLog {
	return s.audit
}

// PreviewRows returns the configured default preview size.
func (s *Service) PreviewRows() int {
	if s.cfg.PreviewRows <= 0 {
		return DefaultPreviewRows
	}
	return s.cfg.PreviewRows
}

// LimiterStatus reports parse slot usage.
func (s *Service) LimiterStatus() LoadLimiterStatus {
	return s.limiter.Status()
}

// WaitForLoads blocks until no load holds a parse slot or ctx is done.
func (s *Service) WaitForLoads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// LoadText parses text and publishes it under name.
func (s *Service) LoadText(ctx context.Context, name, text string) (*Dataset, error) {
	ds, err := s.loadInline(ctx, name, text)
	s.audit.Record(ctx, AuditLogParams{
		Action:  ActionLoadText,
		Dataset: name,
		Source:  InlineSource,
		Result:  ds,
		Err:     err,
	})
	return ds, err
}

func (s *Service) loadInline(ctx context.Context, name, text string) (*Dataset, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if limit := s.cfg.MaxFileSize; limit > 0 && int64(len(text)) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d byte limit", source.ErrFileTooLarge, len(text), limit)
	}
	return s.loadText(ctx, name, text, InlineSource)
}

func (s *Service) loadText(ctx context.Context, name, text, origin string) (*Dataset, error) {
	start := time.Now()

	unlock := s.lockName(name)
	defer unlock()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer s.limiter.Release()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	res := Parse(text)
	ds := s.cache.Load(name, res, WithSource(origin))

	logging.WithFields(ctx,
		"dataset", name,
		"load_id", ds.LoadID,
		"source", origin,
	).Info("dataset loaded",
		"rows", ds.RowCount,
		"columns", len(ds.Columns),
		"parse_errors", len(ds.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return ds, nil
}

// LoadPath loads every supported file under path: a directory, a zip
// archive, or a single file. Files that fail are listed in the report and do
// not stop the rest. Concurrent calls for the same path share one load.
func (s *Service) LoadPath(ctx context.Context, path string) (*LoadReport, error) {
	return s.loadPathAs(ctx, path, "")
}

// loadPathAs is LoadPath with an optional name override, applied when the
// path yields exactly one dataset.
func (s *Service) loadPathAs(ctx context.Context, path, rename string) (*LoadReport, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrMissingPath
	}
	if rename != "" {
		if err := ValidateName(rename); err != nil {
			return nil, err
		}
	}

	clean := filepath.Clean(path)
	key := clean + "\x00" + rename

	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.loadPath(ctx, clean, rename)
	})
	if shared {
		logging.FromContext(ctx).Debug("joined in-flight load", "path", clean)
	}

	report, _ := v.(*LoadReport)
	return report, err
}

func (s *Service) loadPath(ctx context.Context, path, rename string) (*LoadReport, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "path", path)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res, err := source.Collect(ctx, path, source.Options{
		MaxFileSize: s.cfg.MaxFileSize,
		Concurrency: s.cfg.SourceConcurrency,
	})
	if err != nil {
		err = fmt.Errorf("load %s: %w", path, err)
		s.audit.Record(ctx, AuditLogParams{Action: ActionLoadPath, Dataset: rename, Source: path, Err: err})
		return nil, err
	}

	report := &LoadReport{
		Path:   path,
		Loaded: []LoadSummary{},
		Failed: []LoadFailure{},
	}
	for _, f := range res.Failures {
		report.Failed = append(report.Failed, LoadFailure{Name: f.Name, Path: f.Path, Reason: f.Reason})
		s.audit.Record(ctx, AuditLogParams{Action: ActionLoadPath, Dataset: f.Name, Source: f.Path, Err: errors.New(f.Reason)})
	}

	if rename != "" && len(res.Sources) == 1 {
		res.Sources[0].Name = rename
	}

	// Sources load in discovery order so a name repeated under one path
	// resolves to the last file found.
	for i, src := range res.Sources {
		if err := ctx.Err(); err != nil {
			for _, rest := range res.Sources[i:] {
				report.Failed = append(report.Failed, LoadFailure{Name: rest.Name, Path: rest.Path, Reason: err.Error()})
			}
			report.DurationMS = time.Since(start).Milliseconds()
			return report, fmt.Errorf("load %s: %w", path, err)
		}

		ds, err := s.loadText(ctx, src.Name, src.Text, src.Path)
		s.audit.Record(ctx, AuditLogParams{
			Action:  ActionLoadPath,
			Dataset: src.Name,
			Source:  src.Path,
			Result:  ds,
			Err:     err,
		})
		if err != nil {
			log.Warn("dataset load failed", "dataset", src.Name, "file", src.Path, "error", err)
			report.Failed = append(report.Failed, LoadFailure{Name: src.Name, Path: src.Path, Reason: err.Error()})
			continue
		}
		report.Loaded = append(report.Loaded, ds.Summary())
	}

	report.DurationMS = time.Since(start).Milliseconds()
	log.Info("path loaded",
		"loaded", len(report.Loaded),
		"failed", len(report.Failed),
		"duration_ms", report.DurationMS,
	)

	return report, nil
}

// LoadManifest loads every path listed in a YAML manifest. A path that cannot
// be loaded at all becomes a single failure in the combined report.
func (s *Service) LoadManifest(ctx context.Context, file string) (*LoadReport, error) {
	start := time.Now()

	m, err := source.ReadManifest(file)
	if err != nil {
		return nil, err
	}

	report := &LoadReport{
		Path:   file,
		Loaded: []LoadSummary{},
		Failed: []LoadFailure{},
	}
	for _, entry := range m.Sources {
		r, err := s.loadPathAs(ctx, entry.Path, entry.Name)
		if r != nil {
			report.merge(r)
		}
		if err != nil {
			if ctx.Err() != nil {
				report.DurationMS = time.Since(start).Milliseconds()
				return report, err
			}
			if r == nil {
				report.Failed = append(report.Failed, LoadFailure{Name: entry.Name, Path: entry.Path, Reason: err.Error()})
			}
		}
	}

	report.DurationMS = time.Since(start).Milliseconds()
	return report, nil
}

// lockName serializes loads of one dataset name. The returned func releases
// the lock and drops the entry once no load references it.
func (s *Service) lockName(name string) func() {
	s.mu.Lock()
	l, ok := s.names[name]
	if !ok {
		l = &nameLock{}
		s.names[name] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.names, name)
		}
		s.mu.Unlock()
	}
}

// ValidateName rejects names that cannot be addressed in a URL path.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w %q: empty", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w %q: contains a path separator", ErrInvalidName, name)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w %q: contains control characters", ErrInvalidName, name)
	}
	return nil
}

// Summary returns the load report entry for the dataset.
func (d *Dataset) Summary() LoadSummary {
	return LoadSummary{
		Name:        d.Name,
		Source:      d.Source,
		LoadID:      d.LoadID,
		RowCount:    d.RowCount,
		ColumnCount: len(d.Columns),
		ErrorCount:  len(d.Errors),
	}
}
