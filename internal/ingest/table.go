package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DateType is the Arrow type of the cast date column.
var DateType = &arrow.TimestampType{Unit: arrow.Microsecond}

// Table is an ingested, typed table backed by an Arrow record batch.
// Call Release when done with it.
type Table struct {
	record     arrow.RecordBatch
	idColumn   string
	dateColumn string
}

// Record returns the underlying record batch.
func (t *Table) Record() arrow.RecordBatch { return t.record }

// Schema returns the table schema.
func (t *Table) Schema() *arrow.Schema { return t.record.Schema() }

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return int(t.record.NumRows()) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return int(t.record.NumCols()) }

// IDs returns the identifier column. Empty cells come back as "".
func (t *Table) IDs() []string {
	col := t.column(t.idColumn).(*array.String)
	out := make([]string, col.Len())
	for i := range out {
		if col.IsValid(i) {
			out[i] = col.Value(i)
		}
	}
	return out
}

// Dates returns the cast date column in UTC.
func (t *Table) Dates() []time.Time {
	col := t.column(t.dateColumn).(*array.Timestamp)
	out := make([]time.Time, col.Len())
	for i := range out {
		out[i] = col.Value(i).ToTime(arrow.Microsecond)
	}
	return out
}

// Head renders the first n rows as strings.
func (t *Table) Head(n int) [][]string {
	n = min(n, t.NumRows())
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, t.NumCols())
		for j := range row {
			row[j] = t.record.Column(j).ValueStr(i)
		}
		rows[i] = row
	}
	return rows
}

// Release frees the Arrow buffers.
func (t *Table) Release() {
	if t != nil && t.record != nil {
		t.record.Release()
		t.record = nil
	}
}

func (t *Table) column(name string) arrow.Array {
	idx := t.Schema().FieldIndices(name)
	return t.record.Column(idx[0])
}

// columnKind is the inferred type of a free column.
type columnKind int

const (
	kindString columnKind = iota
	kindInt64
	kindFloat64
)

// inferKind picks the narrowest type every non-empty value parses as.
func inferKind(values []string) columnKind {
	kind := kindInt64
	seen := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		if kind == kindInt64 {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			kind = kindFloat64
		}
		if !isDecimal(v) {
			return kindString
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return kindString
		}
	}
	if !seen {
		return kindString
	}
	return kind
}

// isDecimal reports whether v is a plain decimal literal such as "-1.5",
// ".5" or "2e10". NaN, Inf and hex floats are text.
func isDecimal(v string) bool {
	i := 0
	if i < len(v) && (v[i] == '+' || v[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(v) && isDigit(v[i]); i++ {
		digits++
	}
	if i < len(v) && v[i] == '.' {
		i++
		for ; i < len(v) && isDigit(v[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(v) && (v[i] == 'e' || v[i] == 'E') {
		i++
		if i < len(v) && (v[i] == '+' || v[i] == '-') {
			i++
		}
		exp := 0
		for ; i < len(v) && isDigit(v[i]); i++ {
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(v)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// tableBuilder assembles a record batch column by column.
type tableBuilder struct {
	mem    memory.Allocator
	fields []arrow.Field
	arrays []arrow.Array
}

func (b *tableBuilder) addStrings(name string, values []string) {
	sb := array.NewStringBuilder(b.mem)
	defer sb.Release()
	sb.Reserve(len(values))
	for _, v := range values {
		if v == "" {
			sb.AppendNull()
			continue
		}
		sb.Append(v)
	}
	b.add(arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}, sb.NewArray())
}

func (b *tableBuilder) addTimestamps(name string, values []time.Time) {
	tb := array.NewTimestampBuilder(b.mem, DateType)
	defer tb.Release()
	tb.Reserve(len(values))
	for _, v := range values {
		tb.Append(arrow.Timestamp(v.UnixMicro()))
	}
	b.add(arrow.Field{Name: name, Type: DateType, Nullable: false}, tb.NewArray())
}

func (b *tableBuilder) addInferred(name string, values []string) {
	switch inferKind(values) {
	case kindInt64:
		ib := array.NewInt64Builder(b.mem)
		defer ib.Release()
		for _, v := range values {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				ib.AppendNull()
				continue
			}
			ib.Append(n)
		}
		b.add(arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}, ib.NewArray())
	case kindFloat64:
		fb := array.NewFloat64Builder(b.mem)
		defer fb.Release()
		for _, v := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				fb.AppendNull()
				continue
			}
			fb.Append(f)
		}
		b.add(arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}, fb.NewArray())
	default:
		b.addStrings(name, values)
	}
}

func (b *tableBuilder) add(field arrow.Field, arr arrow.Array) {
	b.fields = append(b.fields, field)
	b.arrays = append(b.arrays, arr)
}

// finish creates the record batch and drops the builder's array references.
func (b *tableBuilder) finish(rows int) arrow.RecordBatch {
	schema := arrow.NewSchema(b.fields, nil)
	rec := array.NewRecordBatch(schema, b.arrays, int64(rows))
	b.release()
	return rec
}

func (b *tableBuilder) release() {
	for _, arr := range b.arrays {
		arr.Release()
	}
	b.arrays = nil
}
