package services

import (
	"errors"
)

// Error kinds returned by WalletService. Match them with errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConnected       = errors.New("wallet not connected")
	ErrQueryFailed        = errors.New("query failed")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageFailed      = errors.New("credential storage failed")
)

// Error is a failure of a wallet operation. Message is short and readable;
// the upstream error text is kept and appended.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the upstream cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}
