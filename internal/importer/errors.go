package importer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDate is returned for date fields that are not DD-MM-YYYY.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidAmount is returned for amount fields that are not numeric.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrMissingColumn is matched by every MissingColumnError.
	ErrMissingColumn = errors.New("missing column")
	// ErrCSVSyntax is matched by every SyntaxError.
	ErrCSVSyntax = errors.New("csv syntax error")
	// ErrEncoding is returned when the input cannot be decoded as text.
	ErrEncoding = errors.New("undecodable input")
	// ErrPersistence wraps failures reported by the store.
	ErrPersistence = errors.New("persistence failure")
)

// MissingColumnError reports a required logical field with no matching header.
type MissingColumnError struct {
	Field    string
	Synonyms []string
	Headers  []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("could not find %s column (tried %s); headers found: [%s]",
		e.Field, strings.Join(e.Synonyms, ", "), strings.Join(e.Headers, " | "))
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// SyntaxError reports a malformed header or row for one delimiter attempt.
type SyntaxError struct {
	Delimiter rune
	Row       int // 0 = header
	Err       error
}

func (e *SyntaxError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("reading header with delimiter %q: %v", e.Delimiter, e.Err)
	}
	return fmt.Sprintf("csv row %d with delimiter %q: %v", e.Row, e.Delimiter, e.Err)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrCSVSyntax }

func (e *SyntaxError) Unwrap() error { return e.Err }

// abandonsAttempt reports whether err means the current delimiter attempt is
// unusable and the next one should be tried.
func abandonsAttempt(err error) bool {
	return errors.Is(err, ErrMissingColumn) || errors.Is(err, ErrCSVSyntax)
}
