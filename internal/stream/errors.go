package stream

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructural indicates an unexpected token for the current parser state.
	ErrStructural = errors.New("structural error")

	// ErrEncoding indicates malformed base64 grouping or alphabet.
	ErrEncoding = errors.New("encoding error")

	// ErrProtocol indicates an envelope level violation.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidStream is returned by every call after a parser latched invalid.
	ErrInvalidStream = errors.New("stream is invalid")
)

type Kind uint8

const (
	KindStructural Kind = iota + 1
	KindEncoding
	KindProtocol
	KindChained
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindEncoding:
		return "encoding"
	case KindProtocol:
		return "protocol"
	case KindChained:
		return "chained"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindStructural:
		return ErrStructural
	case KindEncoding:
		return ErrEncoding
	case KindProtocol:
		return ErrProtocol
	default:
		return nil
	}
}

// maxInputExcerpt bounds the offending input echoed back in error messages.
const maxInputExcerpt = 64

// Error describes malformed input at a stream position.
type Error struct {
	Kind     Kind
	Position int
	Input    string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error at position %d", e.Kind, e.Position)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Input != "" {
		fmt.Fprintf(&b, " (input %q)", excerpt(e.Input))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is makes errors.Is(err, ErrProtocol) and friends work on the kind.
func (e *Error) Is(target error) bool {
	sentinel := e.Kind.sentinel()
	return sentinel != nil && target == sentinel
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an error of the given kind.
func Errorf(kind Kind, position int, input string, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Position: position,
		Input:    input,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// Chain re-wraps an error raised by a nested parser with the position of the
// outer parser. The original kind stays reachable through errors.Is.
func Chain(position int, err error) *Error {
	return &Error{
		Kind:     KindChained,
		Position: position,
		Detail:   "nested parser failed",
		Err:      err,
	}
}

// KindOf returns the kind of the innermost stream error, ignoring chaining.
func KindOf(err error) Kind {
	var kind Kind
	for err != nil {
		var se *Error
		if !errors.As(err, &se) {
			break
		}
		kind = se.Kind
		err = se.Err
	}
	return kind
}

func excerpt(s string) string {
	if len(s) <= maxInputExcerpt {
		return s
	}
	return s[:maxInputExcerpt] + "..."
}
