package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// utf8BOM is the byte order mark some spreadsheet exports prepend.
const utf8BOM = "\ufeff"

// Parse splits CSV text into typed records.
//
// The first non-blank row is the header and is passed through NormalizeHeaders.
// Every following non-blank row must have exactly as many fields as the header;
// rows that do not are returned as ParseErrors and parsing continues with the
// next row. A stray quote inside an unquoted field is kept as a literal
// character. Input without any rows yields an empty result rather than an error.
func Parse(text string) ParseResult {
	text = sanitizeText(text)

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		res       ParseResult
		rowNum    int
		lastStart int64
	)

	for {
		row, err := r.Read()
		end := r.InputOffset()
		raw := rowText(text, lastStart, end)
		lastStart = end

		if err == io.EOF {
			break
		}

		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				// Not recoverable; keep what was parsed so far.
				break
			}
			if res.Columns == nil {
				// Never promote a data row to header.
				return ParseResult{}
			}
			rowNum++
			res.Errors = append(res.Errors, ParseError{
				Row:    rowNum,
				Raw:    raw,
				Reason: perr.Err.Error(),
			})
			continue
		}

		if isEmptyRow(row) {
			continue
		}

		if res.Columns == nil {
			res.Columns = NormalizeHeaders(row)
			continue
		}

		rowNum++
		rec, perr := buildRecord(res.Columns, row, rowNum, raw)
		if perr != nil {
			res.Errors = append(res.Errors, *perr)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res
}

// buildRecord infers each field in column order.
func buildRecord(columns []string, row []string, rowNum int, raw string) (Record, *ParseError) {
	if len(row) != len(columns) {
		return Record{}, &ParseError{
			Row:    rowNum,
			Raw:    raw,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(columns), len(row)),
		}
	}

	values := make([]Value, len(row))
	for i, field := range row {
		values[i] = Infer(field)
	}
	return NewRecord(columns, values), nil
}

// rowText returns the source text consumed between two reader offsets with
// surrounding line terminators removed.
func rowText(text string, start, end int64) string {
	if start < 0 || end > int64(len(text)) || start >= end {
		return ""
	}
	return strings.Trim(text[start:end], "\r\n")
}

// sanitizeText drops a leading BOM and replaces invalid UTF-8 with U+FFFD.
func sanitizeText(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// isEmptyRow reports whether a line had no content at all. A row of bare
// delimiters such as ",," is not empty: its fields are present and null.
func isEmptyRow(row []string) bool {
	switch len(row) {
	case 0:
		return true
	case 1:
		return strings.TrimSpace(row[0]) == ""
	default:
		return false
	}
}
