// Package qbatcherrors contains generic errors returned at the boundaries between
// the scheduling core and its collaborators. Callers are expected to recover these
// with errors.As and branch on the type, never on the message text.
//
// If multiple errors occur in some function (e.g., if several jobs fail to prepare),
// that function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package qbatcherrors

import (
	"fmt"
	"time"
)

// ErrInvalidArgument represents an error that occurs when a component is constructed
// or invoked with an argument it cannot work with.
type ErrInvalidArgument struct {
	// Name of the argument
	Name string
	// Value provided
	Value interface{}
	// Optional message included with the error message
	Message string
}

func (err *ErrInvalidArgument) Error() (s string) {
	s = fmt.Sprintf("value %v of argument %s is invalid", err.Value, err.Name)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "backend" or "checkpoint"
	Value   string // Resource name, e.g., "ibm_brisbane"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q not found", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q not found", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrNoFeasibleBackend indicates that no backend in the directory can fit a job.
// The balancer handles it with an emergency fallback assignment rather than
// failing the job.
type ErrNoFeasibleBackend struct {
	// Name of the job that could not be placed
	JobName string
	// Qubits the job requires
	QubitNeed int
}

func (err *ErrNoFeasibleBackend) Error() string {
	return fmt.Sprintf("no backend can fit job %q (needs %d qubits)", err.JobName, err.QubitNeed)
}

// ErrRemoteUnavailable indicates the remote execution surface could not be reached
// or rejected the submission. The submission layer reacts by falling back to the
// local simulator.
type ErrRemoteUnavailable struct {
	// Backend the submission targeted
	Backend string
	// Underlying cause
	Cause error
}

func (err *ErrRemoteUnavailable) Error() string {
	return fmt.Sprintf("remote execution on %q unavailable: %v", err.Backend, err.Cause)
}

func (err *ErrRemoteUnavailable) Unwrap() error {
	return err.Cause
}

// ErrStaleSample is returned by the resource monitor when no utilisation sample
// has been collected recently enough to be trusted.
type ErrStaleSample struct {
	// Age of the most recent sample
	Age time.Duration
}

func (err *ErrStaleSample) Error() string {
	return fmt.Sprintf("most recent utilisation sample is stale (age %s)", err.Age)
}
