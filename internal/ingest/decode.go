package ingest

import (
	"encoding/binary"
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var (
	errOddLength      = errors.New("truncated code unit")
	errUnpairedHigh   = errors.New("unpaired high surrogate")
	errUnpairedLow    = errors.New("unpaired low surrogate")
	utf16LittleEndian = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// decodeUTF16LE converts little-endian UTF-16 to UTF-8, dropping a leading
// byte order mark. Malformed input is rejected rather than replaced.
func decodeUTF16LE(raw []byte) (string, error) {
	if err := validateUTF16LE(raw); err != nil {
		return "", err
	}

	out, err := utf16LittleEndian.NewDecoder().Bytes(raw)
	if err != nil {
		return "", &Error{Stage: StageDecode, Err: err}
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}

// validateUTF16LE finds the first malformed code unit, since the x/text
// decoder substitutes U+FFFD for them silently.
func validateUTF16LE(raw []byte) error {
	n := len(raw)
	for i := 0; i+1 < n; i += 2 {
		u := binary.LittleEndian.Uint16(raw[i:])
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+3 >= n {
				return decodeError(raw, i, 2, errUnpairedHigh)
			}
			next := binary.LittleEndian.Uint16(raw[i+2:])
			if next < 0xDC00 || next > 0xDFFF {
				return decodeError(raw, i, 4, errUnpairedHigh)
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return decodeError(raw, i, 2, errUnpairedLow)
		}
	}
	if n%2 != 0 {
		return decodeError(raw, n-1, 1, errOddLength)
	}
	return nil
}

func decodeError(raw []byte, offset, width int, err error) *Error {
	end := min(offset+width, len(raw))
	return &Error{
		Stage:  StageDecode,
		Offset: int64(offset),
		Text:   string(raw[offset:end]),
		Err:    err,
	}
}
