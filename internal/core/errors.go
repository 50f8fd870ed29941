package core

import "fmt"

// The four failure categories a request can surface. Handlers map these to
// HTTP statuses; everything else is treated as an internal error.

type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// GatewayError is a failed workflow invocation: a non-2xx status, a garbled
// body, or an unreachable/timed-out endpoint (StatusCode 0).
type GatewayError struct {
	StatusCode int
	Reason     string
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("workflow returned status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("workflow unreachable: %s", e.Reason)
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
