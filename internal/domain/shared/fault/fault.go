package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so call sites can branch on behavior instead of
// matching error strings.
type Kind string

const (
	Validation              Kind = "validation"
	ProviderRejected        Kind = "provider_rejected"
	Transient               Kind = "transient"
	PayoutSetupRequired     Kind = "payout_setup_required"
	VerificationRequired    Kind = "verification_required"
	VerificationUnavailable Kind = "verification_unavailable"
	ConcurrencyConflict     Kind = "concurrency_conflict"
	NotFound                Kind = "not_found"
	Internal                Kind = "internal"
)

// Error carries a kind, a stable provider/application code and an optional cause.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a fault of the given kind.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap builds a fault of the given kind around a cause.
func Wrap(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var f *Error
	if errors.As(err, &f) {
		return f.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the failed call may be repeated with the same inputs.
func Retryable(err error) bool {
	return Is(err, Transient)
}
