package ingest

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline step that failed.
type Stage string

const (
	StageIO     Stage = "io"
	StageDecode Stage = "decode"
	StageSchema Stage = "schema"
	StageCast   Stage = "cast"
)

// Sentinel errors, one per stage.
// Use errors.Is() to classify an ingestion failure.
var (
	ErrIO     = errors.New("file unreadable")
	ErrDecode = errors.New("malformed UTF-16LE input")
	ErrSchema = errors.New("unexpected table layout")
	ErrCast   = errors.New("date does not match layout")
)

// Error describes why an ingestion failed. Fields that do not apply to the
// stage are left zero.
type Error struct {
	Stage  Stage
	Path   string
	Offset int64  // decode: byte offset of the offending code unit
	Header string // schema: missing column name
	Row    int    // schema, cast: 1-based data row, header excluded
	Text   string // decode: offending bytes; cast: raw date text
	Layout string // cast: expected date layout
	Err    error
}

func (e *Error) Error() string {
	var detail string
	switch e.Stage {
	case StageDecode:
		detail = fmt.Sprintf("%v at byte offset %d (% x)", e.Err, e.Offset, e.Text)
	case StageSchema:
		switch {
		case e.Header != "":
			detail = fmt.Sprintf("missing column %q", e.Header)
		case e.Row > 0:
			detail = fmt.Sprintf("row %d: %v", e.Row, e.Err)
		default:
			detail = e.Err.Error()
		}
	case StageCast:
		detail = fmt.Sprintf("row %d: %q does not match layout %q", e.Row, e.Text, e.Layout)
	default:
		detail = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s error in %s: %s", e.Stage, e.Path, detail)
	}
	return fmt.Sprintf("%s error: %s", e.Stage, detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's stage.
func (e *Error) Is(target error) bool {
	switch e.Stage {
	case StageIO:
		return target == ErrIO
	case StageDecode:
		return target == ErrDecode
	case StageSchema:
		return target == ErrSchema
	case StageCast:
		return target == ErrCast
	}
	return false
}

// StageOf returns the failed stage of err, or "" when err is not an *Error.
func StageOf(err error) Stage {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Stage
	}
	return ""
}
