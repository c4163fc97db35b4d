package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable category of a domain error surfaced to callers.
type Kind string

const (
	KindNotFound                  Kind = "not_found"
	KindNotAuthorized             Kind = "not_authorized"
	KindSlotAlreadyFilled         Kind = "slot_already_filled"
	KindSessionNotReady           Kind = "session_not_ready"
	KindUpstreamExtractionFailure Kind = "upstream_extraction_failure"
	KindValidationFailure         Kind = "validation_failure"
	KindConflict                  Kind = "conflict"
	KindUnauthenticated           Kind = "unauthenticated"
	KindInternal                  Kind = "internal"
)

// Error carries a Kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is comparisons. Matching is by Kind only.
var (
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrNotAuthorized             = &Error{Kind: KindNotAuthorized}
	ErrSlotAlreadyFilled         = &Error{Kind: KindSlotAlreadyFilled}
	ErrSessionNotReady           = &Error{Kind: KindSessionNotReady}
	ErrUpstreamExtractionFailure = &Error{Kind: KindUpstreamExtractionFailure}
	ErrValidationFailure         = &Error{Kind: KindValidationFailure}
	ErrConflict                  = &Error{Kind: KindConflict}
	ErrUnauthenticated           = &Error{Kind: KindUnauthenticated}
)

// NewError builds an Error without a cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an Error around cause.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var de *Error
	if !errors.As(err, &de) {
		return "internal error"
	}
	if de.Message == "" {
		return strings.ReplaceAll(string(de.Kind), "_", " ")
	}
	return de.Message
}
