package core

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the kind of load being audited.
type AuditAction string

const (
	ActionLoadText AuditAction = "load_text"
	ActionLoadPath AuditAction = "load_path"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// DefaultAuditLogSize is the capacity used when none is configured.
const DefaultAuditLogSize = 500

// DefaultAuditPageSize is the page size of AuditLog.Entries when no limit is given.
const DefaultAuditPageSize = 50

// AuditEntry records one dataset load attempt.
type AuditEntry struct {
	ID         string        `json:"id"`
	Action     AuditAction   `json:"action"`
	Severity   AuditSeverity `json:"severity"`
	Dataset    string        `json:"dataset"`
	Source     string        `json:"source,omitempty"`
	LoadID     string        `json:"load_id,omitempty"`
	RowCount   int           `json:"row_count"`
	ErrorCount int           `json:"error_count"`
	Reason     string        `json:"reason,omitempty"`
	IPAddress  string        `json:"ip_address,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Failed reports whether the load published nothing.
func (e AuditEntry) Failed() bool {
	return e.LoadID == ""
}

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action  AuditAction
	Dataset string
	Source  string
	Result  *Dataset // nil when the load failed
	Err     error
}

// AuditLogOptions filters and pages AuditLog.Entries.
type AuditLogOptions struct {
	Dataset  string
	Action   AuditAction
	Severity AuditSeverity
	Limit    int
	Offset   int
}

// AuditLogResult contains one page of audit entries, newest first.
type AuditLogResult struct {
	Entries    []AuditEntry `json:"entries"`
	TotalCount int          `json:"total_count"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// AuditLog keeps the most recent load attempts in memory. Once full, each
// new entry drops the oldest.
type AuditLog struct {
	mu       sync.RWMutex
	entries  []AuditEntry // oldest first
	capacity int
	now      func() time.Time
}

// NewAuditLog creates a log holding up to capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditLogSize
	}
	return &AuditLog{
		entries:  make([]AuditEntry, 0, min(capacity, 64)),
		capacity: capacity,
		now:      time.Now,
	}
}

// determineSeverity ranks failures high and loads that dropped rows medium.
func determineSeverity(p AuditLogParams) AuditSeverity {
	switch {
	case p.Result == nil:
		return SeverityHigh
	case len(p.Result.Errors) > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Record appends an entry built from params and the client metadata in ctx.
func (a *AuditLog) Record(ctx context.Context, p AuditLogParams) AuditEntry {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Action:    p.Action,
		Severity:  determineSeverity(p),
		Dataset:   p.Dataset,
		Source:    p.Source,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		RequestID: GetRequestIDFromContext(ctx),
	}
	if p.Result != nil {
		entry.LoadID = p.Result.LoadID
		entry.RowCount = p.Result.RowCount
		entry.ErrorCount = len(p.Result.Errors)
	}
	if p.Err != nil {
		entry.Reason = p.Err.Error()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	entry.CreatedAt = a.now()
	if len(a.entries) == a.capacity {
		copy(a.entries, a.entries[1:])
		a.entries = a.entries[:len(a.entries)-1]
	}
	a.entries = append(a.entries, entry)
	return entry
}

// Len returns the number of entries held.
func (a *AuditLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Entries returns a page of matching entries, newest first.
func (a *AuditLog) Entries(opts AuditLogOptions) AuditLogResult {
	if opts.Limit <= 0 {
		opts.Limit = DefaultAuditPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	matched := a.matching(opts)

	page := make([]AuditEntry, 0, opts.Limit)
	if opts.Offset < len(matched) {
		end := min(opts.Offset+opts.Limit, len(matched))
		page = append(page, matched[opts.Offset:end]...)
	}

	totalPages := (len(matched) + opts.Limit - 1) / opts.Limit
	if totalPages < 1 {
		totalPages = 1
	}

	return AuditLogResult{
		Entries:    page,
		TotalCount: len(matched),
		Page:       opts.Offset/opts.Limit + 1,
		PageSize:   opts.Limit,
		TotalPages: totalPages,
	}
}

func (a *AuditLog) matching(opts AuditLogOptions) []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]AuditEntry, 0, len(a.entries))
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if opts.Dataset != "" && e.Dataset != opts.Dataset {
			continue
		}
		if opts.Action != "" && e.Action != opts.Action {
			continue
		}
		if opts.Severity != "" && e.Severity != opts.Severity {
			continue
		}
		out = append(out, e)
	}
	return out
}

var auditCSVHeader = []string{
	"ID", "Timestamp", "Action", "Severity", "Dataset", "Source", "Load ID",
	"Rows", "Errors", "Reason", "IP Address", "User Agent", "Request ID",
}

// ExportCSV writes every entry matching opts, ignoring paging, as CSV.
func (a *AuditLog) ExportCSV(w io.Writer, opts AuditLogOptions) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(auditCSVHeader); err != nil {
		return err
	}
	for _, e := range a.matching(opts) {
		err := cw.Write([]string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			string(e.Severity),
			e.Dataset,
			e.Source,
			e.LoadID,
			strconv.Itoa(e.RowCount),
			strconv.Itoa(e.ErrorCount),
			e.Reason,
			e.IPAddress,
			e.UserAgent,
			e.RequestID,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
