package errors

import (
	"errors"
	"fmt"
)

// Kind classifies why an upload run stopped.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindConnection
	KindMalformedRow
	KindSkipPastEnd
	KindInsert
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindMalformedRow:
		return "malformed_row"
	case KindSkipPastEnd:
		return "skip_past_end"
	case KindInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind. UploadError values match them with errors.Is.
var (
	ErrConfig       = errors.New("configuration unavailable")
	ErrConnection   = errors.New("store connection failed")
	ErrMalformedRow = errors.New("malformed input row")
	ErrSkipPastEnd  = errors.New("resume offset past end of input")
	ErrInsert       = errors.New("insert failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindConnection:
		return ErrConnection
	case KindMalformedRow:
		return ErrMalformedRow
	case KindSkipPastEnd:
		return ErrSkipPastEnd
	case KindInsert:
		return ErrInsert
	default:
		return nil
	}
}

// UploadError is a failure tagged with its Kind. Row is the input line number for
// malformed rows and the sorted-sequence index for inserts; -1 when not applicable.
type UploadError struct {
	Kind Kind
	Row  int
	Err  error
}

func (e *UploadError) Error() string {
	msg := e.Kind.sentinel()
	if msg == nil {
		msg = errors.New("upload failed")
	}
	if e.Row >= 0 {
		return fmt.Sprintf("%s (row %d): %v", msg, e.Row, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New wraps err with kind. A nil err yields nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &UploadError{Kind: kind, Row: -1, Err: err}
}

// NewRowError wraps err with kind and the offending row.
func NewRowError(kind Kind, row int, err error) error {
	if err == nil {
		return nil
	}
	return &UploadError{Kind: kind, Row: row, Err: err}
}

// KindOf reports the Kind of the outermost UploadError in err's chain.
func KindOf(err error) Kind {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

// RowOf reports the row recorded on err, or -1.
func RowOf(err error) int {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Row
	}
	return -1
}

func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

func IsMalformedRow(err error) bool {
	return errors.Is(err, ErrMalformedRow)
}

func IsSkipPastEnd(err error) bool {
	return errors.Is(err, ErrSkipPastEnd)
}

func IsInsert(err error) bool {
	return errors.Is(err, ErrInsert)
}
