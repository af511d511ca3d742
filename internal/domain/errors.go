package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoAccounts         = errors.New("no accounts configured")
	ErrAccountIndex       = errors.New("account index out of range")
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrModelNotConfigured = errors.New("model is not configured")
	ErrNoUploadSucceeded  = errors.New("no reference image upload succeeded")
	// ErrTimedOut is raised by the poller when the wait ceiling is reached
	// without a terminal vendor state. Never produced by the vendor.
	ErrTimedOut = errors.New("generation timed out")
)

// TransportError is a network-level failure (timeout, connection). Always
// retryable by the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure on %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError marks a response body that could not be parsed as the
// expected JSON shape. Not retryable without a vendor-side fix.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol failure on %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ApplicationError carries a vendor rejection verbatim: any response with
// ret != "0". The code is never interpreted below the lifecycle layer.
type ApplicationError struct {
	Code    string
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("vendor rejected request: ret=%s errmsg=%q", e.Code, e.Message)
}

// UploadPhase names the step of the three-phase upload pipeline that failed.
type UploadPhase string

const (
	UploadPhaseApply    UploadPhase = "apply"
	UploadPhaseTransfer UploadPhase = "transfer"
	UploadPhaseCommit   UploadPhase = "commit"
)

// UploadPhaseError reports a failed upload for a single image. Sibling
// uploads in the same batch are unaffected.
type UploadPhaseError struct {
	Phase UploadPhase
	Err   error
}

func (e *UploadPhaseError) Error() string {
	return fmt.Sprintf("upload %s phase failed: %v", e.Phase, e.Err)
}

func (e *UploadPhaseError) Unwrap() error { return e.Err }
