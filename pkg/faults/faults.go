package faults

import "errors"

// Code represents a portal error category independent of the transport layer
// and of whichever hosted backend produced the underlying failure.
type Code string

const (
	// CodeInvalidCredential deliberately merges bad password, unknown user
	// and unapproved account so the login screen never leaks approval state.
	CodeInvalidCredential Code = "invalid_credential"

	CodeWeakPassword       Code = "weak_password"
	CodeEmailInUse         Code = "email_in_use"
	CodeTooManyAttempts    Code = "too_many_attempts"
	CodeNetworkFailure     Code = "network_failure"
	CodeInvalidEmailFormat Code = "invalid_email_format"
	CodeRequiresReauth     Code = "requires_reauthentication"
	CodeOperationDisabled  Code = "operation_disabled"
	CodeOTPSendFailure     Code = "otp_send_failure"
	CodeOTPMismatch        Code = "otp_mismatch"
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeInternal           Code = "internal_error"
	CodeUnknown            Code = "unknown"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new portal error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new portal error wrapping an existing error.
// If the wrapped error is already a portal error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a portal error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// userMessages holds the fixed user-presentable text per code. Backend error
// text must never reach a view except through the CodeUnknown fallback.
var userMessages = map[Code]string{
	CodeInvalidCredential:  "incorrect email or password",
	CodeWeakPassword:       "password is too weak, use at least 6 characters",
	CodeEmailInUse:         "an account with this email already exists",
	CodeTooManyAttempts:    "too many attempts, please try again later",
	CodeNetworkFailure:     "network error, check your connection and try again",
	CodeInvalidEmailFormat: "enter a valid email address",
	CodeRequiresReauth:     "please sign in again to continue",
	CodeOperationDisabled:  "sign-in is currently disabled",
	CodeOTPSendFailure:     "failed to send verification code",
	CodeOTPMismatch:        "invalid verification code",
	CodeNotFound:           "not found",
	CodeBadRequest:         "invalid request",
	CodeInternal:           "something went wrong, please try again",
}

// Translate returns a user-presentable message for any error. It is total:
// it never returns an empty string and never panics. Unrecognized errors fall
// back to the raw error text under the unknown category.
func Translate(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if msg, ok := userMessages[e.Code]; ok {
			return msg
		}
		if e.Message != "" {
			return e.Message
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return userMessages[CodeInternal]
}

// Backend error codes emitted by the hosted credential provider. The mapping
// below is the single place provider-specific codes become portal codes.
const (
	BackendWrongPassword     = "wrong-password"
	BackendUserNotFound      = "user-not-found"
	BackendUserDisabled      = "user-disabled"
	BackendInvalidEmail      = "invalid-email"
	BackendEmailAlreadyInUse = "email-already-in-use"
	BackendWeakPassword      = "weak-password"
	BackendTooManyRequests   = "too-many-requests"
	BackendNetworkFailed     = "network-request-failed"
	BackendRequiresLogin     = "requires-recent-login"
	BackendOperationDisabled = "operation-not-allowed"
	BackendInvalidCredential = "invalid-credential"
)

// FromBackend maps a credential-provider error code to a portal error.
// Unknown user, wrong password and disabled accounts all collapse into the
// generic invalid-credential category to avoid account enumeration.
func FromBackend(code, message string) error {
	switch code {
	case BackendWrongPassword, BackendUserNotFound, BackendUserDisabled, BackendInvalidCredential:
		return &Error{Code: CodeInvalidCredential, Message: userMessages[CodeInvalidCredential]}
	case BackendInvalidEmail:
		return &Error{Code: CodeInvalidEmailFormat, Message: userMessages[CodeInvalidEmailFormat]}
	case BackendEmailAlreadyInUse:
		return &Error{Code: CodeEmailInUse, Message: userMessages[CodeEmailInUse]}
	case BackendWeakPassword:
		return &Error{Code: CodeWeakPassword, Message: userMessages[CodeWeakPassword]}
	case BackendTooManyRequests:
		return &Error{Code: CodeTooManyAttempts, Message: userMessages[CodeTooManyAttempts]}
	case BackendNetworkFailed:
		return &Error{Code: CodeNetworkFailure, Message: userMessages[CodeNetworkFailure]}
	case BackendRequiresLogin:
		return &Error{Code: CodeRequiresReauth, Message: userMessages[CodeRequiresReauth]}
	case BackendOperationDisabled:
		return &Error{Code: CodeOperationDisabled, Message: userMessages[CodeOperationDisabled]}
	default:
		return &Error{Code: CodeUnknown, Message: message}
	}
}
