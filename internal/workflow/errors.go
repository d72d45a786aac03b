// Package workflow holds the pure parts of the workflow client: input
// parsing and validation, query building, step tree projection and the
// error taxonomy shared by the backends.
package workflow

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

var (
	// ErrPollTimeout is matched by errors.Is when a wait exceeds its deadline.
	ErrPollTimeout = errors.New("timed out waiting for workflow")
	// ErrStepNotFound is returned when a named step is absent from the step tree.
	ErrStepNotFound = errors.New("step not found in workflow")
)

// ValidationError reports a missing or malformed input detected before any
// request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ParseError reports a malformed inline "name=value,..." assignment list.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("incorrect properties format: %s", e.Input)
}

// AmbiguousMatchError is returned when a workflow name resolves to more than
// one key.
type AmbiguousMatchError struct {
	Name string
	Keys []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("more than one workflow found with name %q (%s)", e.Name, strings.Join(e.Keys, ", "))
}

// RemoteConflictError is a 409 from the service, e.g. archiving a workflow
// that is already archived.
type RemoteConflictError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteConflictError) Error() string {
	return fmt.Sprintf("%s: conflict (status %d): %s", e.Op, e.Status, e.Body)
}

// RemoteFailure is any other non-success response from the service.
type RemoteFailure struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("%s: request failed (status %d): %s", e.Op, e.Status, e.Body)
}

// TerminalFailure is synthesized by the poller when a workflow reaches a
// non-success terminal state even though every request succeeded.
type TerminalFailure struct {
	Key      string
	Mode     string
	Snapshot *models.WorkflowInstance
	// Ambiguous is set when the terminal shape could also describe a
	// workflow that was never started.
	Ambiguous bool
}

func (e *TerminalFailure) Error() string {
	status := ""
	if e.Snapshot != nil {
		status = e.Snapshot.StatusName
		if e.Snapshot.AutomationStatus != nil && e.Snapshot.AutomationStatus.MessageText != "" {
			status += ": " + e.Snapshot.AutomationStatus.MessageText
		}
	}
	msg := fmt.Sprintf("workflow %s did not complete (%s)", e.Key, status)
	if e.Ambiguous {
		msg += "; the workflow may not have been started"
	}
	return msg
}

// PollTimeoutError is returned when the overall wait deadline passes before
// a terminal condition is seen.
type PollTimeoutError struct {
	Key     string
	Polls   int
	Elapsed time.Duration
	Last    *models.WorkflowInstance
	Cause   error
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("workflow %s: %v after %d polls", e.Key, ErrPollTimeout, e.Polls)
}

func (e *PollTimeoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrPollTimeout}
	}
	return []error{ErrPollTimeout, e.Cause}
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var rf *RemoteFailure
	return errors.As(err, &rf) && rf.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the service.
func IsConflict(err error) bool {
	var rc *RemoteConflictError
	return errors.As(err, &rc)
}
