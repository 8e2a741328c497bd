// Package source discovers CSV-like files on disk and inside zip archives and
// returns their decoded text, one entry per dataset.
//
// Supported members:
//
//	name.csv       plain text
//	name.csv.gz    gzip
//	name.csv.zst   zstandard
//	name.csv.xz    xz
//	name.xlsx      each sheet re-encoded as CSV
//
// A path may be a directory (walked recursively, hidden entries skipped), a
// .zip archive, or a single supported file. A file that cannot be read is
// reported in Result.Failures and does not stop the others.
package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files read in parallel when Options
// does not set one.
const DefaultConcurrency = 4

// Source is the decoded text of one dataset.
type Source struct {
	Name string // Dataset name: file name without its extensions
	Path string // Origin, "archive.zip:member.csv" for archive members
	Text string
}

// Failure records a file that was found but could not be read.
type Failure struct {
	Name   string `json:"name,omitempty"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Result is everything Collect found under a path.
type Result struct {
	Sources  []Source
	Failures []Failure
}

// Options controls how files are read.
type Options struct {
	MaxFileSize int64 // Decoded size limit per file; 0 disables
	Concurrency int   // Files read in parallel; 0 uses DefaultConcurrency
}

// job is one discovered file waiting to be read.
type job struct {
	name string
	path string
	kind kind
	open func() (io.ReadCloser, error)
}

// Collect finds and reads every supported file under path. It returns an
// error only when path itself cannot be used or ctx is done; problems with
// individual files are reported in Result.Failures.
func Collect(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	var (
		jobs     []job
		failures []Failure
		closers  []io.Closer
	)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	switch {
	case info.IsDir():
		jobs, closers, failures = walkDir(path)
	case isZip(path):
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", path, err)
		}
		closers = append(closers, zr)
		jobs = zipJobs(path, &zr.Reader)
	default:
		j, ok := fileJob(path)
		if !ok {
			return nil, fmt.Errorf("unsupported source: %s", path)
		}
		jobs = []job{j}
	}

	results := make([][]Source, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = readJob(j, opts.MaxFileSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Failures: failures}
	for i, j := range jobs {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{
				Name:   j.name,
				Path:   j.path,
				Reason: errs[i].Error(),
				Err:    errs[i],
			})
			continue
		}
		res.Sources = append(res.Sources, results[i]...)
	}

	slog.Debug("sources collected",
		"path", path,
		"files", len(jobs),
		"sources", len(res.Sources),
		"failures", len(res.Failures),
	)

	return res, nil
}

// walkDir discovers supported files and zip archives below root.
func walkDir(root string) ([]job, []io.Closer, []Failure) {
	var (
		jobs     []job
		closers  []io.Closer
		failures []Failure
	)

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			failures = append(failures, Failure{Path: path, Reason: err.Error(), Err: err})
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if isZip(path) {
			zr, err := zip.OpenReader(path)
			if err != nil {
				failures = append(failures, Failure{
					Path:   path,
					Reason: fmt.Sprintf("open archive: %v", err),
					Err:    err,
				})
				return nil
			}
			closers = append(closers, zr)
			jobs = append(jobs, zipJobs(path, &zr.Reader)...)
			return nil
		}

		if j, ok := fileJob(path); ok {
			jobs = append(jobs, j)
		}
		return nil
	})

	return jobs, closers, failures
}

// zipJobs lists supported members of an archive. Nested archives are skipped.
func zipJobs(archive string, zr *zip.Reader) []job {
	var jobs []job
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || isHiddenPath(f.Name) {
			continue
		}
		if isZip(f.Name) {
			slog.Debug("skipping nested archive", "archive", archive, "member", f.Name)
			continue
		}

		k, name, ok := classify(f.Name)
		if !ok {
			continue
		}

		jobs = append(jobs, job{
			name: name,
			path: archive + ":" + f.Name,
			kind: k,
			open: f.Open,
		})
	}
	return jobs
}

// fileJob builds a job for a loose file, reporting false for unsupported types.
func fileJob(path string) (job, bool) {
	k, name, ok := classify(path)
	if !ok {
		return job{}, false
	}
	return job{
		name: name,
		path: path,
		kind: k,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, true
}

func isZip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || name == "__MACOSX"
}

// isHiddenPath reports whether any element of a slash-separated archive path is hidden.
func isHiddenPath(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part != "" && isHidden(part) {
			return true
		}
	}
	return false
}
