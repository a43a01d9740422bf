package shared

import (
	"errors"
	"net/http"

	"civita/internal/transport/http/json"
	"civita/pkg/faults"
)

// WriteError centralizes fault translation to HTTP responses. The body always
// carries the taxonomy code plus the user-presentable message from
// faults.Translate, never raw backend text.
func WriteError(w http.ResponseWriter, err error) {
	var fault *faults.Error
	if errors.As(err, &fault) {
		json.WriteJSON(w, CodeToHTTPStatus(fault.Code), map[string]string{
			"error":             string(fault.Code),
			"error_description": faults.Translate(err),
		})
		return
	}

	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error":             string(faults.CodeInternal),
		"error_description": faults.Translate(err),
	})
}

// CodeToHTTPStatus translates taxonomy codes to HTTP status codes.
func CodeToHTTPStatus(code faults.Code) int {
	switch code {
	case faults.CodeInvalidCredential, faults.CodeOTPMismatch, faults.CodeRequiresReauth:
		return http.StatusUnauthorized
	case faults.CodeTooManyAttempts:
		return http.StatusTooManyRequests
	case faults.CodeWeakPassword, faults.CodeInvalidEmailFormat, faults.CodeBadRequest:
		return http.StatusBadRequest
	case faults.CodeEmailInUse:
		return http.StatusConflict
	case faults.CodeOperationDisabled:
		return http.StatusForbidden
	case faults.CodeNetworkFailure, faults.CodeOTPSendFailure:
		return http.StatusBadGateway
	case faults.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
