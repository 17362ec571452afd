package clinicapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the clinic API.
type APIError struct {
	Endpoint   string
	StatusCode int
	// Detail is the server's message, suitable for showing to the user.
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicapi: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Detail)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsConflict reports whether the server refused the request with 409.
func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}

// detailFrom reads the "detail" field of an error payload. FastAPI style
// validation errors carry a list; the first message wins.
func detailFrom(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var msg string
		if err := json.Unmarshal(payload.Detail, &msg); err == nil && strings.TrimSpace(msg) != "" {
			return msg
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &list); err == nil && len(list) > 0 && list[0].Msg != "" {
			return list[0].Msg
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}
