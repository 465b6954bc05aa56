// ABOUTME: Error taxonomy shared across transport, auth, backends, and orchestration
// ABOUTME: Callers inspect errors with errors.Is / errors.As only
package models

import "errors"

var (
	// ErrTransport covers connect failures and connect timeouts
	ErrTransport = errors.New("transport error")
	// ErrAuth covers popup failures, auth timeouts, and explicit rejection
	ErrAuth = errors.New("authentication error")
	// ErrBackendUnavailable means no tier could serve an operation
	ErrBackendUnavailable = errors.New("no backend available")
	// ErrClassification means the intent response could not be parsed
	ErrClassification = errors.New("intent classification error")
	// ErrNotConnected is returned when an operation needs a live connection
	ErrNotConnected = errors.New("not connected")
	// ErrDisconnected rejects state tied to a connection that was closed
	ErrDisconnected = errors.New("disconnected")
	// ErrRequestTimeout is returned when no response arrives in time
	ErrRequestTimeout = errors.New("request timed out")
	// ErrTierUnavailable is returned by a tier whose preconditions are unmet
	ErrTierUnavailable = errors.New("tier unavailable")
)

// UpstreamErrorKind classifies text-generation provider failures
type UpstreamErrorKind string

const (
	UpstreamKeyExpired    UpstreamErrorKind = "key_expired"
	UpstreamQuotaExceeded UpstreamErrorKind = "quota_exceeded"
	UpstreamUnknown       UpstreamErrorKind = "unknown"
)

// UpstreamError wraps a provider error whose text matched a key or quota
// pattern. It triggers a mode switch rather than a user-visible failure.
type UpstreamError struct {
	Kind UpstreamErrorKind
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "upstream " + string(e.Kind)
	}
	return "upstream " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }
