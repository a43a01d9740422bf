package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesExistingCode(t *testing.T) {
	inner := New(CodeOTPMismatch, "invalid verification code")
	wrapped := Wrap(inner, CodeInternal, "verify step failed")

	assert.True(t, HasCode(wrapped, CodeOTPMismatch))
	assert.False(t, HasCode(wrapped, CodeInternal))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeTooManyAttempts, "slow down"))
	assert.True(t, HasCode(err, CodeTooManyAttempts))
	assert.False(t, HasCode(err, CodeInvalidCredential))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestTranslateIsTotal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"known code", New(CodeInvalidCredential, "raw backend text"), "incorrect email or password"},
		{"unknown code falls back to message", &Error{Code: CodeUnknown, Message: "backend said no"}, "backend said no"},
		{"plain error falls back to text", errors.New("dial tcp: refused"), "dial tcp: refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Translate(tc.err))
		})
	}
}

func TestTranslateHidesBackendText(t *testing.T) {
	// A recognized code always yields the fixed message, never the raw text.
	err := FromBackend(BackendWrongPassword, "INVALID_PASSWORD: the password is invalid")
	assert.Equal(t, "incorrect email or password", Translate(err))
}

func TestFromBackendCollapsesEnumerableCodes(t *testing.T) {
	for _, code := range []string{
		BackendWrongPassword,
		BackendUserNotFound,
		BackendUserDisabled,
		BackendInvalidCredential,
	} {
		err := FromBackend(code, "whatever")
		assert.True(t, HasCode(err, CodeInvalidCredential),
			"backend code %q must map to the generic credential error", code)
	}
}

func TestFromBackendSpecificCodes(t *testing.T) {
	cases := map[string]Code{
		BackendInvalidEmail:      CodeInvalidEmailFormat,
		BackendEmailAlreadyInUse: CodeEmailInUse,
		BackendWeakPassword:      CodeWeakPassword,
		BackendTooManyRequests:   CodeTooManyAttempts,
		BackendNetworkFailed:     CodeNetworkFailure,
		BackendRequiresLogin:     CodeRequiresReauth,
		BackendOperationDisabled: CodeOperationDisabled,
	}
	for backend, want := range cases {
		assert.True(t, HasCode(FromBackend(backend, ""), want))
	}

	unknown := FromBackend("quota-exceeded", "daily quota exceeded")
	assert.True(t, HasCode(unknown, CodeUnknown))
	assert.Equal(t, "daily quota exceeded", Translate(unknown))
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := New(CodeOTPMismatch, "one")
	b := New(CodeOTPMismatch, "two")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, New(CodeInternal, "")))
}
