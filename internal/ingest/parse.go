package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoHeader = errors.New("no header row")

// parseTSV reads tab-delimited text with a header row. Fields may be quoted
// with '"' to embed tabs, newlines or doubled quotes; a quote inside an
// unquoted field is kept as text. Every row must have as many fields as the
// header.
func parseTSV(text string) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = '\t'
	r.FieldsPerRecord = 0
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, &Error{Stage: StageSchema, Err: errNoHeader}
		}
		return nil, nil, &Error{Stage: StageSchema, Err: fmt.Errorf("header: %w", err)}
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, &Error{Stage: StageSchema, Row: len(rows) + 1, Err: parseCause(err)}
		}
		rows = append(rows, record)
	}

	return header, rows, nil
}

// parseCause strips csv.ParseError's file position, which counts physical
// lines rather than data rows.
func parseCause(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// columnIndex returns the position of an exact header match.
func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
