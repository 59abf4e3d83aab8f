package domain

import (
	"errors"
	"fmt"
)

// FailureKind categorizes adapter failures for retry-vs-abort decisions
type FailureKind string

const (
	FailureAuth      FailureKind = "auth"
	FailureQuota     FailureKind = "quota"
	FailureTimeout   FailureKind = "timeout"
	FailureService   FailureKind = "service-error"
	FailureMalformed FailureKind = "malformed-response"
)

// AdapterError is a categorized failure from a capability adapter.
// The kind drives internal policy; the message is what reaches the timeline.
type AdapterError struct {
	Kind    FailureKind
	Adapter string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Adapter, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Adapter, e.Message, e.Kind)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError builds a categorized adapter failure
func NewAdapterError(adapter string, kind FailureKind, message string, err error) *AdapterError {
	return &AdapterError{Kind: kind, Adapter: adapter, Message: message, Err: err}
}

// FailureKindOf extracts the failure category from an error chain,
// defaulting to service-error for uncategorized failures.
func FailureKindOf(err error) FailureKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return FailureService
}
