package optin

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds cross the HTTP boundary; causes never do.
type Kind string

const (
	KindEmailRequired      Kind = "EMAIL_REQUIRED"
	KindEmailTooLong       Kind = "EMAIL_TOO_LONG"
	KindEmailInvalid       Kind = "EMAIL_INVALID"
	KindAlreadyPending     Kind = "ALREADY_PENDING"
	KindTokenInvalid       Kind = "TOKEN_INVALID"
	KindTokenNotFound      Kind = "TOKEN_NOT_FOUND"
	KindTokenMismatch      Kind = "TOKEN_MISMATCH"
	KindTokenExpired       Kind = "TOKEN_EXPIRED"
	KindWriteFailed        Kind = "WRITE_FAILED"
	KindSaveFailed         Kind = "SAVE_FAILED"
	KindConfirmationFailed Kind = "CONFIRMATION_FAILED"
	KindCheckFailed        Kind = "CHECK_FAILED"
	KindCleanupFailed      Kind = "CLEANUP_FAILED"
	KindEmailSendFailed    Kind = "EMAIL_SEND_FAILED"
)

var kindMessages = map[Kind]string{
	KindEmailRequired:      "Email is required",
	KindEmailTooLong:       "Email is too long",
	KindEmailInvalid:       "Email address is invalid",
	KindAlreadyPending:     "A confirmation email has already been sent to this address",
	KindTokenInvalid:       "Invalid confirmation token",
	KindTokenNotFound:      "Confirmation token not found",
	KindTokenMismatch:      "Confirmation token does not match",
	KindTokenExpired:       "Confirmation token has expired",
	KindWriteFailed:        "Failed to store subscription request",
	KindSaveFailed:         "Failed to save subscription",
	KindConfirmationFailed: "Confirmation failed",
	KindCheckFailed:        "Failed to check subscription state",
	KindCleanupFailed:      "Failed to clean up expired tokens",
	KindEmailSendFailed:    "Failed to send confirmation email",
}

// Error is a classified failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// NewError builds an Error of the given kind with its default message.
func NewError(kind Kind, cause error) *Error {
	msg, ok := kindMessages[kind]
	if !ok {
		msg = string(kind)
	}
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so errors.Is(err, ErrTokenExpired) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrAlreadyPending = NewError(KindAlreadyPending, nil)
	ErrTokenInvalid   = NewError(KindTokenInvalid, nil)
	ErrTokenNotFound  = NewError(KindTokenNotFound, nil)
	ErrTokenMismatch  = NewError(KindTokenMismatch, nil)
	ErrTokenExpired   = NewError(KindTokenExpired, nil)
)

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
