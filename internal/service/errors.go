package service

import "fmt"

// The service layer reports failures as typed errors so callers can
// tell a bad request from a missing row, a role restriction, a
// stale-state retry, or a server-side defect.

// ValidationError is a client-caused precondition failure, rejected
// before any mutation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func errValidation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a row absent for the caller's tenant. It never
// reveals whether the row exists under another tenant.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func errNotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// ForbiddenError reports an operation the acting user's role does not
// permit.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func errForbidden(format string, args ...interface{}) error {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports an operation attempted against a row that has
// already moved past the expected state. CurrentState carries the
// actual state so the caller can render an actionable message.
type ConflictError struct {
	Resource     string
	CurrentState string
	Message      string
}

func (e *ConflictError) Error() string { return e.Message }

// ConfigError is a server-side configuration defect, such as a chart of
// accounts code missing for a tenant. It aborts the enclosing
// transaction and is never the caller's fault.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func errConfig(format string, args ...interface{}) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}
