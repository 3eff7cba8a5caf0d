package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"vantage/pkg/apierr"
	"vantage/pkg/validation"
)

// writeData wraps a payload in the success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

// writeError wraps a failure in the error envelope the client normalizes.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// decodeBody reads a JSON request body into dst and applies its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return false
	}
	if err := validation.Validate(dst); err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		} else {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request body")
		}
		return false
	}
	return true
}
