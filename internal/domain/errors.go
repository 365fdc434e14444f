// Package domain provides shared domain-level sentinel errors and the
// uniform operation result envelope.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates invalid input supplied by the caller.
var ErrValidation = errors.New("validation failed")

// Result is the uniform envelope returned by core operations.
// Expected business-rule violations (wrong agent, illegal transition,
// declined admission) come back as Success=false with a human-readable
// Message; only unexpected internal errors surface as Go errors.
type Result struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Rejection codes carried on failed Results so transport layers can map
// them to status codes without parsing messages.
const (
	CodeThrottled = "throttled"
	CodeInvalid   = "invalid"
	CodeRejected  = "rejected"
	CodeFallback  = "fallback"
)

// OK returns a successful Result carrying optional data.
func OK(msg string, data any) Result {
	return Result{Success: true, Message: msg, Data: data}
}

// Rejected returns a failed Result for an expected business violation.
func Rejected(format string, args ...any) Result {
	return Result{Success: false, Code: CodeRejected, Message: fmt.Sprintf(format, args...)}
}

// RejectedCode is Rejected with an explicit machine-readable code.
func RejectedCode(code, format string, args ...any) Result {
	return Result{Success: false, Code: code, Message: fmt.Sprintf(format, args...)}
}
