// internal/flow/errors.go
package flow

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/xkilldash9x/authflow/internal/browser"
)

// ErrorCode classifies why a run failed.
type ErrorCode string

const (
	// ErrCodeEnvironment means the browser could not be launched.
	ErrCodeEnvironment ErrorCode = "ENVIRONMENT_ERROR"
	// ErrCodeElementNotFound means a required element was absent after the implicit wait.
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	// ErrCodeTimeout means the post-submit redirect did not happen in time.
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigation ErrorCode = "NAVIGATION_ERROR"
	ErrCodeCanceled   ErrorCode = "RUN_CANCELED"
	// ErrCodeExecutionFailure covers everything else, including recovered panics.
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
)

// Error is the failure of one step of a run. Diagnostic carries the text of
// the page's error message when one could be read.
type Error struct {
	Code       ErrorCode
	Step       State
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed (%s): %v", e.Step, e.Code, e.Err)
	if e.Diagnostic != "" {
		msg += fmt.Sprintf(" [page error: %q]", e.Diagnostic)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Format prints the wrapped error's stack trace for %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Error())
			fmt.Fprintf(s, "\n%+v", e.Err)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// Classify maps err onto an ErrorCode.
func Classify(err error) ErrorCode {
	var fe *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, browser.ErrLaunchFailed):
		return ErrCodeEnvironment
	case errors.Is(err, browser.ErrElementNotFound):
		return ErrCodeElementNotFound
	case errors.Is(err, browser.ErrWaitTimeout):
		return ErrCodeTimeout
	case errors.Is(err, browser.ErrNavigationFailed):
		return ErrCodeNavigation
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeExecutionFailure
	}
}

// stepError attributes err to step. err should already carry a stack trace
// from errors.Wrap or errors.WithStack. Errors that are already *Error pass
// through unchanged.
func stepError(step State, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{
		Code: Classify(err),
		Step: step,
		Err:  err,
	}
}
