// Package fault classifies failures into the handful of kinds the sync and
// publish layers react to differently: transient conditions are retried with
// backoff, auth failures abort the source immediately, validation failures
// skip the offending record, and conflicts restart a publish transaction.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind int

const (
	// KindTransient covers timeouts, rate limits and remote 5xx responses.
	KindTransient Kind = iota + 1
	// KindAuth covers credential and permission failures. Never retried.
	KindAuth
	// KindValidation covers records that fail to normalize.
	KindValidation
	// KindConflict covers compare-and-swap losses on the publish branch.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error carries a failure kind alongside the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Auth wraps err as a credential failure.
func Auth(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

// Validation wraps err as a bad-record failure.
func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Conflict wraps err as a concurrent-writer failure.
func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

// KindOf returns the failure kind of err, or 0 if err is unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsConflict reports whether err is a concurrent-writer failure.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
