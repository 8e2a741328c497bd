package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/csvcache/internal/core"
	"github.com/JonMunkholm/csvcache/internal/logging"
	"github.com/JonMunkholm/csvcache/internal/source"
	"github.com/JonMunkholm/csvcache/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// recentLoadsShown is how many audit entries the dashboard lists.
const recentLoadsShown = 10

// maxJSONBody bounds request bodies that carry JSON rather than CSV.
const maxJSONBody = 1 << 20

var errBadParam = errors.New("invalid parameter")

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Datasets int                    `json:"datasets"`
	Loads    core.LoadLimiterStatus `json:"loads"`
}

// LoadResponse is returned by PUT /api/datasets/{name}.
type LoadResponse struct {
	Dataset core.LoadSummary  `json:"dataset"`
	Errors  []core.ParseError `json:"errors"`
}

// LoadPathRequest is the body of POST /api/load.
type LoadPathRequest struct {
	Path string `json:"path"`
}

// ============================================================================
// Pages
// ============================================================================

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params := templates.DashboardParams{
		Datasets: s.service.Cache().List(),
		Limiter:  s.service.LimiterStatus(),
		Recent:   s.service.AuditLog().Entries(core.AuditLogOptions{Limit: recentLoadsShown}).Entries,
	}
	s.render(w, r, templates.Dashboard(params))
}

func (s *Server) handleDatasetPage(w http.ResponseWriter, r *http.Request) {
	name := datasetName(r)

	ds, err := s.service.Cache().Get(name, s.service.PreviewRows())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	s.render(w, r, templates.DatasetPage(templates.DatasetPageParams{
		Info:    ds.Info(),
		Source:  ds.Source,
		LoadID:  ds.LoadID,
		Preview: ds.Records,
		Errors:  ds.Errors,
	}))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}

// ============================================================================
// API: reads
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, StatusResponse{
		Datasets: s.service.Cache().Len(),
		Loads:    s.service.LimiterStatus(),
	})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Cache().List())
}

// handleGetDataset returns a dataset. ?sample=N limits the records to the
// first N; omitted or 0 returns all of them.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	sample, err := queryInt(r, "sample", 0)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	ds, err := s.service.Cache().Get(datasetName(r), sample)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, ds)
}

// handlePreviewDataset returns the first ?rows=N records, defaulting to the
// configured preview size.
func (s *Server) handlePreviewDataset(w http.ResponseWriter, r *http.Request) {
	rows, err := queryInt(r, "rows", s.service.PreviewRows())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	records, err := s.service.Cache().Preview(datasetName(r), rows)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, records)
}

// ============================================================================
// API: loads
// ============================================================================

// handleLoadDataset parses the request body as CSV text and publishes it
// under the URL name.
func (s *Server) handleLoadDataset(w http.ResponseWriter, r *http.Request) {
	name := datasetName(r)

	body := http.MaxBytesReader(w, r.Body, s.cfg.Load.MaxFileSize)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: body exceeds %d byte limit", source.ErrFileTooLarge, tooLarge.Limit)
		}
		s.respondError(w, r, err, 0)
		return
	}

	ds, err := s.service.LoadText(r.Context(), name, string(data))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, r, http.StatusOK, LoadResponse{
		Dataset: ds.Summary(),
		Errors:  ds.Errors,
	})
}

// handleLoadPath loads every CSV source under a server-side path. The load
// outlives a disconnecting client; the load timeout still bounds it.
func (s *Server) handleLoadPath(w http.ResponseWriter, r *http.Request) {
	var req LoadPathRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadBody, err), 0)
		return
	}

	report, err := s.service.LoadPath(context.WithoutCancel(r.Context()), req.Path)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// ============================================================================
// API: audit log
// ============================================================================

// handleAuditLog returns a page of load audit entries, newest first.
// Filters: ?dataset= ?action= ?severity=, paging: ?limit= ?offset=.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	opts, err := auditLogOptions(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, s.service.AuditLog().Entries(opts))
}

// handleAuditLogExport streams every matching audit entry as CSV.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	opts, err := auditLogOptions(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="load-audit-log.csv"`)
	if err := s.service.AuditLog().ExportCSV(w, opts); err != nil {
		logging.FromContext(r.Context()).Error("audit log export", "error", err)
	}
}

func auditLogOptions(r *http.Request) (core.AuditLogOptions, error) {
	q := r.URL.Query()
	opts := core.AuditLogOptions{
		Dataset:  q.Get("dataset"),
		Action:   core.AuditAction(q.Get("action")),
		Severity: core.AuditSeverity(q.Get("severity")),
	}

	var err error
	if opts.Limit, err = queryInt(r, "limit", core.DefaultAuditPageSize); err != nil {
		return opts, err
	}
	if opts.Offset, err = queryInt(r, "offset", 0); err != nil {
		return opts, err
	}
	return opts, nil
}

// datasetName returns the decoded {name} path parameter. chi matches on the
// escaped path when one exists, so "Q1%20report" arrives still encoded.
func datasetName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w %q: must be a non-negative integer, got %q", errBadParam, name, raw)
	}
	return n, nil
}
