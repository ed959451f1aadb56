package schemas

import "encoding/json"

// -- Capability Schemas --

// CapabilityStatus is the outcome of a capability invocation.
type CapabilityStatus string

const (
	CapabilityOK     CapabilityStatus = "success"
	CapabilityFailed CapabilityStatus = "failed"
)

// ErrorCode is a structured failure class reported back to the reasoning
// service so it can adapt its next decision. Using a dedicated type keeps
// free-form strings out of the error channel.
type ErrorCode string

const (
	ErrCodeUnknownCapability ErrorCode = "UNKNOWN_CAPABILITY"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeSurfaceFailure    ErrorCode = "SURFACE_FAILURE"
	ErrCodeTargetNotFound    ErrorCode = "TARGET_NOT_FOUND"
	ErrCodeInvalidPlan       ErrorCode = "INVALID_PLAN"
	ErrCodeTimeout           ErrorCode = "TIMEOUT_ERROR"
)

// CapabilityResult is the uniform result shape for every capability
// invocation. Failures are values, never panics or raw errors: a failed tool
// call must still be reported into the conversation.
type CapabilityResult struct {
	Status    CapabilityStatus `json:"status"`
	Data      json.RawMessage  `json:"data,omitempty"`
	ErrorCode ErrorCode        `json:"error_code,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// OK reports whether the invocation succeeded.
func (r CapabilityResult) OK() bool { return r.Status == CapabilityOK }
