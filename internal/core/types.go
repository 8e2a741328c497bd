package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Kind tags the active variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindDate
	KindString
)

// String returns the lowercase kind name used in JSON and logs.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single typed cell. Exactly one variant is active, selected by Kind.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	d    pgtype.Date
	s    string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value. f must be finite.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic(fmt.Sprintf("core: non-finite number %v", f))
	}
	return Value{kind: KindNumber, n: f}
}

// Date returns a calendar date value at UTC midnight.
func Date(year int, month time.Month, day int) Value {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Value{kind: KindDate, d: pgtype.Date{Time: t, Valid: true}}
}

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind reports which variant is active.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsDate returns the date payload as a UTC midnight time.
func (v Value) AsDate() (time.Time, bool) { return v.d.Time, v.kind == KindDate }

// AsString returns the text payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindDate:
		return v.d.Time.Equal(o.d.Time)
	case KindString:
		return v.s == o.s
	default:
		return false
	}
}

// Text renders the value the way it would appear in a CSV cell.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindDate:
		return v.d.Time.Format(time.DateOnly)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// String implements fmt.Stringer for debugging output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "Null"
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	default:
		return fmt.Sprintf("%s(%s)", kindLabel(v.kind), v.Text())
	}
}

func kindLabel(k Kind) string {
	switch k {
	case KindBool:
		return "Boolean"
	case KindNumber:
		return "Number"
	case KindDate:
		return "Date"
	default:
		return k.String()
	}
}

// MarshalJSON encodes null, bool, number, "YYYY-MM-DD" or string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindDate:
		return v.d.MarshalJSON()
	case KindString:
		return json.Marshal(v.s)
	default:
		return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
	}
}

// Record is one typed row. It shares the column slice of its dataset and
// always holds exactly one value per column.
type Record struct {
	columns []string
	values  []Value
}

// NewRecord pairs columns with values. It panics if the lengths differ.
func NewRecord(columns []string, values []Value) Record {
	if len(columns) != len(values) {
		panic(fmt.Sprintf("core: record has %d values for %d columns", len(values), len(columns)))
	}
	return Record{columns: columns, values: values}
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.values) }

// Columns returns the canonical column names in order.
func (r Record) Columns() []string { return r.columns }

// Values returns the typed values in column order.
func (r Record) Values() []Value { return r.values }

// Get returns the value for a column name.
func (r Record) Get(column string) (Value, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseError describes a data row that could not become a Record.
type ParseError struct {
	Row    int    `json:"row"`    // 1-based, first data row after the header is 1
	Raw    string `json:"raw"`    // Source text of the row
	Reason string `json:"reason"` // Human-readable cause
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ParseResult is the output of Parse.
type ParseResult struct {
	Columns []string
	Records []Record
	Errors  []ParseError
}

// Dataset is the typed result of one CSV source. A published Dataset is never
// mutated; reloading a name publishes a new one.
type Dataset struct {
	Name     string       `json:"name"`
	LoadID   string       `json:"load_id"`
	Source   string       `json:"source,omitempty"`
	Columns  []string     `json:"columns"`
	Records  []Record     `json:"records"`
	Errors   []ParseError `json:"errors"`
	RowCount int          `json:"row_count"`
	LoadedAt time.Time    `json:"loaded_at"`
}

// Info returns the list metadata for the dataset.
func (d *Dataset) Info() DatasetInfo {
	return DatasetInfo{
		Name:        d.Name,
		RowCount:    d.RowCount,
		ColumnCount: len(d.Columns),
		Columns:     d.Columns,
		ErrorCount:  len(d.Errors),
		LoadedAt:    d.LoadedAt,
	}
}

// DatasetInfo is the per-dataset summary returned by Cache.List.
type DatasetInfo struct {
	Name        string    `json:"name"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	Columns     []string  `json:"columns"`
	ErrorCount  int       `json:"error_count"`
	LoadedAt    time.Time `json:"loaded_at"`
}
