package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FaultKind classifies provider errors for the engine's retry policy.
type FaultKind int

const (
	// FaultTransient covers 5xx responses, timeouts and connection
	// resets. The job's state is untouched and the rotation is retried
	// on the next tick.
	FaultTransient FaultKind = iota
	// FaultAuth means the token is invalid or lacks a required
	// permission. Fatal for every job on that account this tick.
	FaultAuth
	// FaultNotFound means the record or zone does not exist at the
	// provider. The job is quarantined for the current tick.
	FaultNotFound
	// FaultBadRequest means the provider rejected the payload. The job
	// is quarantined for the current tick.
	FaultBadRequest
)

// String returns a human-readable name for the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultTransient:
		return "transient"
	case FaultAuth:
		return "auth"
	case FaultNotFound:
		return "not_found"
	case FaultBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Fault is a classified provider error.
type Fault struct {
	Kind FaultKind
	Err  error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("provider %s fault: %v", f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault wraps err with a classification.
func NewFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// KindOf returns the fault kind of err. Unclassified errors, network
// errors and context deadlines are treated as transient so the engine
// retries them on the next tick.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FaultTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FaultTransient
	}
	return FaultTransient
}

// IsRetryable reports whether the engine should leave job state
// untouched and retry on the next tick.
func IsRetryable(err error) bool {
	return KindOf(err) == FaultTransient
}
