package messaging

import (
	"errors"
	"fmt"
)

// Kind classifies messaging failures so callers can decide how to react.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConnection
	KindSerialization
	KindHandler
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnection:
		return "connection"
	case KindSerialization:
		return "serialization"
	case KindHandler:
		return "handler"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

var (
	ErrValidation    = errors.New("messaging: validation failed")
	ErrConnection    = errors.New("messaging: connection unavailable")
	ErrSerialization = errors.New("messaging: serialization failed")
	ErrHandler       = errors.New("messaging: handler failed")
	ErrTransport     = errors.New("messaging: transport failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindConnection:
		return ErrConnection
	case KindSerialization:
		return ErrSerialization
	case KindHandler:
		return ErrHandler
	case KindTransport:
		return ErrTransport
	default:
		return nil
	}
}

// Error is returned by every broker operation.
type Error struct {
	Kind        Kind
	Op          string
	Destination string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Destination != "" {
		msg += " " + e.Destination
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrPermanent marks a handler failure that redelivery cannot fix. The
// consumer rejects such messages instead of requeueing them.
var ErrPermanent = errors.New("messaging: permanent failure")

// Permanent wraps err so that errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func newError(kind Kind, op, destination string, err error) *Error {
	return &Error{Kind: kind, Op: op, Destination: destination, Err: err}
}

func ValidationError(op, destination string, format string, args ...any) error {
	return newError(KindValidation, op, destination, fmt.Errorf(format, args...))
}

func ConnectionError(op, destination string, err error) error {
	return newError(KindConnection, op, destination, err)
}

func SerializationError(op, destination string, err error) error {
	return newError(KindSerialization, op, destination, err)
}

func HandlerError(op, destination string, err error) error {
	return newError(KindHandler, op, destination, err)
}

func TransportError(op, destination string, err error) error {
	return newError(KindTransport, op, destination, err)
}

// KindOf reports the kind of the first messaging error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether retrying the same operation later may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindTransport:
		return true
	default:
		return false
	}
}
