// Package templates renders the HTML views of the dataset browser as templ
// components.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/JonMunkholm/csvcache/internal/core"
	"github.com/a-h/templ"
)

// DashboardParams holds everything the dashboard shows.
type DashboardParams struct {
	Datasets []core.DatasetInfo
	Limiter  core.LoadLimiterStatus
	Recent   []core.AuditEntry
}

// DatasetPageParams holds everything the dataset view shows.
type DatasetPageParams struct {
	Info    core.DatasetInfo
	Source  string
	LoadID  string
	Preview []core.Record
	Errors  []core.ParseError
}

// maxErrorsShown bounds the parse error table on the dataset page.
const maxErrorsShown = 50

// Dashboard lists every cached dataset.
func Dashboard(p DashboardParams) templ.Component {
	return layout("Datasets", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.printf(`<header><h1>Datasets</h1><p class="status">Loads: %d active, %d of %d slots free</p></header>`,
			p.Limiter.Active, p.Limiter.Available, p.Limiter.MaxConcurrent)

		if len(p.Datasets) == 0 {
			ew.print(`<p class="empty">No datasets loaded. PUT CSV text to /api/datasets/{name} or POST a path to /api/load.</p>`)
		} else {
			datasetTable(ew, p.Datasets)
		}

		if len(p.Recent) > 0 {
			recentLoads(ew, p.Recent)
		}
		return ew.err
	}))
}

func datasetTable(ew *errWriter, datasets []core.DatasetInfo) {
	ew.print(`<table class="datasets"><thead><tr><th>Name</th><th>Rows</th><th>Columns</th><th>Errors</th><th>Loaded</th></tr></thead><tbody>`)
	for _, d := range datasets {
		ew.printf(`<tr><td><a href="/datasets/%s">%s</a></td><td>%d</td><td>%d</td><td>%d</td><td>%s</td></tr>`,
			templ.EscapeString(url.PathEscape(d.Name)),
			templ.EscapeString(d.Name),
			d.RowCount, d.ColumnCount, d.ErrorCount,
			d.LoadedAt.Format(time.RFC3339),
		)
	}
	ew.print(`</tbody></table>`)
}

func recentLoads(ew *errWriter, entries []core.AuditEntry) {
	ew.print(`<h2>Recent loads</h2><table class="audit"><thead><tr><th>When</th><th>Action</th><th>Dataset</th><th>Source</th><th>Result</th></tr></thead><tbody>`)
	for _, e := range entries {
		result := fmt.Sprintf("%d rows, %d errors", e.RowCount, e.ErrorCount)
		if e.Failed() {
			result = "failed: " + e.Reason
		}
		ew.printf(`<tr class="%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			e.Severity,
			e.CreatedAt.Format(time.RFC3339),
			e.Action,
			templ.EscapeString(e.Dataset),
			templ.EscapeString(e.Source),
			templ.EscapeString(result),
		)
	}
	ew.print(`</tbody></table>`)
}

// DatasetPage shows a dataset's columns, a record preview and its parse errors.
func DatasetPage(p DatasetPageParams) templ.Component {
	return layout(p.Info.Name, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.printf(`<header><a href="/">&larr; Datasets</a><h1>%s</h1>`, templ.EscapeString(p.Info.Name))
		ew.printf(`<p class="meta">%d rows, %d columns, %d parse errors. Source: %s. Load %s.</p></header>`,
			p.Info.RowCount, p.Info.ColumnCount, p.Info.ErrorCount,
			templ.EscapeString(p.Source), templ.EscapeString(p.LoadID))

		ew.printf(`<h2>Preview (%d of %d)</h2>`, len(p.Preview), p.Info.RowCount)
		ew.print(`<table class="preview"><thead><tr>`)
		for _, c := range p.Info.Columns {
			ew.printf(`<th>%s</th>`, templ.EscapeString(c))
		}
		ew.print(`</tr></thead><tbody>`)
		for _, rec := range p.Preview {
			ew.print(`<tr>`)
			for _, v := range rec.Values() {
				ew.printf(`<td class="%s">%s</td>`, v.Kind(), templ.EscapeString(v.Text()))
			}
			ew.print(`</tr>`)
		}
		ew.print(`</tbody></table>`)

		if len(p.Errors) > 0 {
			ew.print(`<h2>Parse errors</h2><table class="errors"><thead><tr><th>Row</th><th>Reason</th><th>Raw</th></tr></thead><tbody>`)
			for i, e := range p.Errors {
				if i == maxErrorsShown {
					ew.printf(`<tr><td colspan="3">%d more not shown</td></tr>`, len(p.Errors)-maxErrorsShown)
					break
				}
				ew.printf(`<tr><td>%d</td><td>%s</td><td><code>%s</code></td></tr>`,
					e.Row, templ.EscapeString(e.Reason), templ.EscapeString(e.Raw))
			}
			ew.print(`</tbody></table>`)
		}
		return ew.err
	}))
}

// ErrorAlert renders an error fragment with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="alert alert-error" role="alert"><strong>%s</strong>`, templ.EscapeString(message))
		if action != "" {
			ew.printf(`<p>%s</p>`, templ.EscapeString(action))
		}
		if code != "" {
			ew.printf(`<small>Code: %s</small>`, templ.EscapeString(code))
		}
		ew.print(`</div>`)
		return ew.err
	})
}

// ErrorPage wraps ErrorAlert in the page layout.
func ErrorPage(status int, message, action, code string) templ.Component {
	return layout(strconv.Itoa(status)+" "+message, ErrorAlert(message, action, code))
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title>`, templ.EscapeString(title))
		ew.print(`<style>` + styles + `</style></head><body><main>`)
		if ew.err != nil {
			return ew.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		ew.print(`</main></body></html>`)
		return ew.err
	})
}

const styles = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}` +
	`table{border-collapse:collapse;margin:1rem 0}th,td{border:1px solid #d1d5db;padding:.25rem .5rem;text-align:left}` +
	`td.number{text-align:right}td.null{color:#9ca3af}.alert-error{border:1px solid #dc2626;padding:1rem;color:#991b1b}` +
	`tr.high td{color:#991b1b}tr.medium td{color:#92400e}`

// errWriter keeps the first write error so templates can write without
// checking every call.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
