package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

type kind int

const (
	kindCSV kind = iota
	kindGzip
	kindZstd
	kindXz
	kindXlsx
)

// suffixes is checked in order, so compound extensions come before ".csv".
var suffixes = []struct {
	ext  string
	kind kind
}{
	{".csv.gz", kindGzip},
	{".csv.zst", kindZstd},
	{".csv.xz", kindXz},
	{".csv", kindCSV},
	{".xlsx", kindXlsx},
}

// classify maps a file name to its decoder and dataset name.
func classify(p string) (kind, string, bool) {
	base := path.Base(filepath.ToSlash(p))
	lower := strings.ToLower(base)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.ext) && len(base) > len(s.ext) {
			return s.kind, base[:len(base)-len(s.ext)], true
		}
	}
	return 0, "", false
}

// readJob opens and decodes one file. Spreadsheets may yield several sources.
func readJob(j job, limit int64) ([]Source, error) {
	rc, err := j.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", j.path, err)
	}
	defer rc.Close()

	if j.kind == kindXlsx {
		return readWorkbook(j, rc, limit)
	}

	r, closeFn, err := decompress(j.kind, rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", j.path, err)
	}
	defer closeFn()

	text, err := readText(r, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", j.path, err)
	}

	return []Source{{Name: j.name, Path: j.path, Text: text}}, nil
}

// decompress wraps r with the decoder for k.
func decompress(k kind, r io.Reader) (io.Reader, func(), error) {
	noop := func() {}

	switch k {
	case kindCSV:
		return r, noop, nil
	case kindGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case kindZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return zr, zr.Close, nil
	case kindXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return xr, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported source: kind %d", k)
	}
}

// readWorkbook re-encodes each non-empty sheet as CSV text. A workbook with a
// single sheet keeps the file name; otherwise the sheet name is appended.
func readWorkbook(j job, r io.Reader, limit int64) ([]Source, error) {
	f, err := excelize.OpenReader(newLimitedReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", j.path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	var out []Source
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s in %s: %w", sheet, j.path, err)
		}
		if len(rows) == 0 {
			continue
		}

		text, err := rowsToCSV(rows)
		if err != nil {
			return nil, fmt.Errorf("encode sheet %s in %s: %w", sheet, j.path, err)
		}

		name := j.name
		if len(sheets) > 1 {
			name = j.name + "_" + sheet
		}
		out = append(out, Source{
			Name: name,
			Path: j.path + "#" + sheet,
			Text: text,
		})
	}
	return out, nil
}

// rowsToCSV pads rows to a common width, since GetRows drops trailing empty
// cells, and writes them as CSV. A row with no cells stays a blank line.
func rowsToCSV(rows [][]string) (string, error) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if len(row) > 0 && len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
