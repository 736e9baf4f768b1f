package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindUnreachable Kind = "unreachable"
	KindRejected    Kind = "rejected"
	KindMalformed   Kind = "malformed"
	KindValidation  Kind = "validation"
	KindCanceled    Kind = "canceled"
)

// Error is the only error type returned by Client methods.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("gateway %s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind == k
	}
	return false
}

// KindOf returns the kind of a gateway error, or "" for other errors.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func malformedError(op string, err error) *Error {
	return &Error{Kind: KindMalformed, Op: op, Message: "malformed response", Err: err}
}

// transportError maps an error from the HTTP round trip to a Kind.
func transportError(op string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Op: op, Message: "request canceled", Err: err}
	default:
		return &Error{Kind: KindUnreachable, Op: op, Message: "backend unreachable", Err: err}
	}
}
