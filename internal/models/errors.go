package models

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory marks a policy outcome, not a fault: the input
// window was shorter than the evaluator's minimum, so a conservative
// non-idle / non-anomalous verdict was produced instead of a detection.
var ErrInsufficientHistory = errors.New("insufficient history")

// DataError wraps a malformed or missing upstream record. Handlers skip the
// affected unit and record the failure; they never abort the batch.
type DataError struct {
	Unit string
	Err  error
}

func (e *DataError) Error() string { return fmt.Sprintf("bad data for %s: %v", e.Unit, e.Err) }
func (e *DataError) Unwrap() error { return e.Err }

// ExecutionError wraps a destructive-action failure at the execution
// collaborator. The owning CleanupAction moves to FAILED and the failure is
// always user-visible via notification.
type ExecutionError struct {
	ResourceID string
	Kind       ActionKind
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s on %s: %v", e.Kind, e.ResourceID, e.Err)
}
func (e *ExecutionError) Unwrap() error { return e.Err }

// ConfigError wraps a missing or unparseable policy document. The affected
// evaluator falls back to built-in defaults and flags degraded mode in the
// cycle summary rather than halting.
type ConfigError struct {
	Document string
	Err      error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.Document, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }
