// Package ingest turns a UTF-16LE tab-separated export into a typed table.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/raphaelgruber/whitelister/internal/metrics"
)

// Progress milestones reported during ingestion.
const (
	ProgressOpened = 0.1
	ProgressParsed = 0.9
	ProgressDone   = 1.0
)

// Options configures which columns are forced and how dates are parsed.
type Options struct {
	// IDColumn is kept as a string column regardless of content
	IDColumn string
	// DateColumn is cast to a timestamp with DateLayout
	DateColumn string
	// DateLayout is a Go reference-time layout, interpreted in UTC
	DateLayout string
	// HeadRows is how many rows are logged after a successful ingestion
	HeadRows int
}

// DefaultOptions returns the column names and layout of the enrolment export.
func DefaultOptions() Options {
	return Options{
		IDColumn:   "STUDENT NUMBER",
		DateColumn: "ENROLMENT DATE",
		DateLayout: "2.1.2006 15.4.5",
		HeadRows:   5,
	}
}

// Ingestor runs the read, decode, parse and cast pipeline.
type Ingestor struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Collector
	mem     memory.Allocator
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger for milestones and table summaries.
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingestor) { in.logger = l }
}

// WithMetrics records stage timings into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(in *Ingestor) { in.metrics = c }
}

// WithAllocator sets the Arrow allocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(in *Ingestor) { in.mem = mem }
}

// New creates an ingestor.
func New(opts Options, options ...Option) *Ingestor {
	in := &Ingestor{
		opts:    opts,
		logger:  slog.Default(),
		metrics: metrics.NewCollector(),
		mem:     memory.DefaultAllocator,
	}
	for _, o := range options {
		o(in)
	}
	return in
}

// Ingest reads path and returns the typed table. onProgress, if non-nil,
// receives non-decreasing fractions ending at 1.0 on success. Ingestion is
// all-or-nothing: on error no table is returned.
func (in *Ingestor) Ingest(path string, onProgress func(float64)) (*Table, error) {
	report := func(v float64) {
		in.logger.Info("progress update", "percent", fmt.Sprintf("%.1f%%", v*100))
		if onProgress != nil {
			onProgress(v)
		}
	}

	in.logger.Info("processing file", "path", path)

	table, size, err := in.run(path, report)
	if err != nil {
		var ie *Error
		if errors.As(err, &ie) && ie.Path == "" {
			ie.Path = path
		}
		in.metrics.RecordRun(false, size, 0)
		in.logger.Error("ingestion failed", "path", path, "error", err)
		return nil, err
	}

	in.metrics.RecordRun(true, size, int64(table.NumRows()))
	in.logSummary(table)
	report(ProgressDone)
	return table, nil
}

func (in *Ingestor) run(path string, report func(float64)) (*Table, int64, error) {
	done := in.metrics.Time(metrics.StageRead)
	f, err := os.Open(path)
	if err != nil {
		done()
		return nil, 0, &Error{Stage: StageIO, Err: err}
	}
	report(ProgressOpened)

	raw, err := io.ReadAll(f)
	_ = f.Close()
	done()
	if err != nil {
		return nil, int64(len(raw)), &Error{Stage: StageIO, Err: err}
	}
	size := int64(len(raw))

	done = in.metrics.Time(metrics.StageDecode)
	text, err := decodeUTF16LE(raw)
	done()
	if err != nil {
		return nil, size, err
	}

	done = in.metrics.Time(metrics.StageParse)
	header, rows, err := parseTSV(text)
	done()
	if err != nil {
		return nil, size, err
	}

	idIdx := columnIndex(header, in.opts.IDColumn)
	if idIdx < 0 {
		return nil, size, &Error{Stage: StageSchema, Header: in.opts.IDColumn, Err: ErrSchema}
	}
	dateIdx := columnIndex(header, in.opts.DateColumn)
	if dateIdx < 0 {
		return nil, size, &Error{Stage: StageSchema, Header: in.opts.DateColumn, Err: ErrSchema}
	}

	done = in.metrics.Time(metrics.StageCast)
	dates, err := castDates(rows, dateIdx, in.opts.DateLayout)
	done()
	if err != nil {
		return nil, size, err
	}
	report(ProgressParsed)

	done = in.metrics.Time(metrics.StageBuild)
	defer done()

	b := &tableBuilder{mem: in.mem}
	for j, name := range header {
		values := columnValues(rows, j)
		switch j {
		case idIdx:
			b.addStrings(name, values)
		case dateIdx:
			b.addTimestamps(name, dates)
		default:
			b.addInferred(name, values)
		}
	}

	return &Table{
		record:     b.finish(len(rows)),
		idColumn:   in.opts.IDColumn,
		dateColumn: in.opts.DateColumn,
	}, size, nil
}

// castDates parses column idx of every row with layout in UTC.
func castDates(rows [][]string, idx int, layout string) ([]time.Time, error) {
	dates := make([]time.Time, len(rows))
	for i, row := range rows {
		t, err := time.ParseInLocation(layout, row[idx], time.UTC)
		if err != nil {
			return nil, &Error{Stage: StageCast, Row: i + 1, Text: row[idx], Layout: layout, Err: err}
		}
		dates[i] = t
	}
	return dates, nil
}

func columnValues(rows [][]string, idx int) []string {
	values := make([]string, len(rows))
	for i, row := range rows {
		values[i] = row[idx]
	}
	return values
}

// logSummary logs shape, column types and the first rows of t.
func (in *Ingestor) logSummary(t *Table) {
	in.logger.Info("file loaded", "rows", t.NumRows(), "columns", t.NumCols())
	for _, f := range t.Schema().Fields() {
		in.logger.Info("column", "name", f.Name, "type", f.Type.String())
	}
	for i, row := range t.Head(in.opts.HeadRows) {
		in.logger.Info("row", "index", i, "values", strings.Join(row, " | "))
	}
}
