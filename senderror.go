// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import (
	"errors"
	"strings"
)

// List of SendError reasons
const (
	// ErrReasonConnect is returned if the Transport could not reach the delivery endpoint
	ErrReasonConnect SendErrReason = iota

	// ErrReasonSender is returned if the delivery endpoint rejected the sender address
	ErrReasonSender

	// ErrReasonRcpt is returned if the delivery endpoint rejected one or more recipients
	ErrReasonRcpt

	// ErrReasonContent is returned if the message content could not be built or written
	ErrReasonContent

	// ErrReasonProvider is returned if a batch provider refused the submission
	ErrReasonProvider

	// ErrReasonAmbiguous is a generalized delivery error for the SendError type that is
	// returned if the exact reason for the delivery failure is ambiguous
	ErrReasonAmbiguous
)

// SendErrReason represents a comparable reason on why the delivery failed
type SendErrReason int

// SendError is an error wrapper for delivery errors of a PhysicalMessage.
//
// Transports return a SendError to report which recipients of a physical message failed. If
// the affected recipient list is empty, the whole message is considered failed.
type SendError struct {
	Reason  SendErrReason
	errlist []error
	isTemp  bool
	rcpt    []string
}

// NewSendError returns a new SendError.
//
// Parameters:
//   - reason: The SendErrReason of the failure.
//   - temp: Whether the failure is temporary and the delivery can be retried.
//   - rcpt: The affected recipient addresses. Nil marks all recipients as failed.
//   - errs: The underlying errors.
//
// Returns:
//   - A pointer to the SendError.
func NewSendError(reason SendErrReason, temp bool, rcpt []string, errs ...error) *SendError {
	return &SendError{Reason: reason, isTemp: temp, rcpt: rcpt, errlist: errs}
}

// Error implements the error interface for the SendError type.
func (e *SendError) Error() string {
	if e.Reason > ErrReasonAmbiguous || e.Reason < ErrReasonConnect {
		return "unknown reason"
	}

	var errMessage strings.Builder
	errMessage.WriteString(e.Reason.String())
	if len(e.errlist) > 0 {
		errMessage.WriteRune(':')
		for i := range e.errlist {
			errMessage.WriteRune(' ')
			errMessage.WriteString(e.errlist[i].Error())
			if i != len(e.errlist)-1 {
				errMessage.WriteString(",")
			}
		}
	}
	if len(e.rcpt) > 0 {
		errMessage.WriteString(", affected recipient(s): ")
		errMessage.WriteString(strings.Join(e.rcpt, ", "))
	}
	return errMessage.String()
}

// Is implements the errors.Is functionality and compares the SendErrReason and the
// temporary status of both errors.
func (e *SendError) Is(errType error) bool {
	var t *SendError
	if errors.As(errType, &t) && t != nil {
		return e.Reason == t.Reason && e.isTemp == t.isTemp
	}
	return false
}

// Unwrap returns the underlying errors.
func (e *SendError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return e.errlist
}

// IsTemp returns true if the delivery error is of a temporary nature and can be retried.
func (e *SendError) IsTemp() bool {
	if e == nil {
		return false
	}
	return e.isTemp
}

// Rcpt returns the affected recipient addresses. An empty list means every recipient of the
// physical message is affected.
func (e *SendError) Rcpt() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.rcpt))
	copy(out, e.rcpt)
	return out
}

// String satisfies the fmt.Stringer interface for the SendErrReason type.
func (r SendErrReason) String() string {
	switch r {
	case ErrReasonConnect:
		return "connecting to delivery endpoint"
	case ErrReasonSender:
		return "sender address rejected"
	case ErrReasonRcpt:
		return "recipient address rejected"
	case ErrReasonContent:
		return "writing message content"
	case ErrReasonProvider:
		return "batch provider refused submission"
	case ErrReasonAmbiguous:
		return "ambiguous reason, check the transport logs for message specific reasons"
	}
	return "unknown reason"
}
