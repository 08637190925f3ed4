package extraction

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures.
type Kind string

const (
	KindTransport       Kind = "transport"
	KindTimeout         Kind = "timeout"
	KindInvalidResponse Kind = "invalid_response"
	KindEmptyResult     Kind = "empty_result"
)

// Sentinels matching each Kind through errors.Is.
var (
	ErrTransport       = errors.New("extraction request failed")
	ErrTimeout         = errors.New("extraction timed out")
	ErrInvalidResponse = errors.New("invalid vendor response")
	ErrEmptyResult     = errors.New("vendor returned no usable predictions")
)

// Error is returned by every Extractor. None of them are retried.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.sentinel(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimeout) and friends match on Kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindTimeout:
		return ErrTimeout
	case KindInvalidResponse:
		return ErrInvalidResponse
	case KindEmptyResult:
		return ErrEmptyResult
	default:
		return ErrTransport
	}
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
