// Package apierror classifies failures coming back from the clinic backend
// and extracts a human-readable message from whatever the error body carries.
package apierror

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Class buckets a failed call for notification and recovery purposes.
// Callers should not branch control flow on anything finer than this.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassPermission
	ClassNotFound
	ClassRateLimit
	ClassServer
	ClassNetwork
	ClassAuthExpired
	ClassAuthUnrecoverable
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassPermission:
		return "permission"
	case ClassNotFound:
		return "not_found"
	case ClassRateLimit:
		return "rate_limit"
	case ClassServer:
		return "server"
	case ClassNetwork:
		return "network"
	case ClassAuthExpired:
		return "auth_expired"
	case ClassAuthUnrecoverable:
		return "auth_unrecoverable"
	}
	return "unknown"
}

// Common sentinel errors for the auth recovery path.
var (
	ErrSessionExpired   = errors.New("session expired")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError is a classified backend failure. Body holds the raw error body,
// when one was read, so message extraction can be re-run with a different
// fallback.
type APIError struct {
	Status  int
	Class   Class
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "request failed (" + e.Class.String() + ")"
}

// New builds an APIError from a status code and raw error body.
func New(status int, body []byte) *APIError {
	return &APIError{
		Status:  status,
		Class:   ClassifyStatus(status),
		Message: ExtractMessage(body, ""),
		Body:    body,
	}
}

// FromResponse drains nothing; the caller is responsible for having read the
// body already. A nil body is fine.
func FromResponse(resp *http.Response, body []byte) *APIError {
	return New(resp.StatusCode, body)
}

// ClassifyStatus maps an HTTP status to an error class. Network failures
// (no response at all) are classified by ClassifyErr instead.
func ClassifyStatus(status int) Class {
	switch {
	case status == http.StatusUnauthorized:
		return ClassAuthExpired
	case status == http.StatusForbidden:
		return ClassPermission
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ClassValidation
	case status >= 500:
		return ClassServer
	}
	return ClassUnknown
}

// ClassifyErr wraps a transport-level error (timeout, refused connection,
// cancelled context) as a network-class APIError.
func ClassifyErr(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{
		Class:   ClassNetwork,
		Message: filterBoilerplate(err.Error()),
	}
}

// errorBody is the shape the backend uses for error payloads. Only one of
// the fields is normally populated.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ExtractMessage pulls a displayable message out of an error body.
// Priority: body as a bare JSON string, then message/error/details fields,
// then the fallback. HTTP status boilerplate never survives extraction.
func ExtractMessage(body []byte, fallback string) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fallback
	}

	var asString string
	if err := json.Unmarshal(body, &asString); err == nil && strings.TrimSpace(asString) != "" {
		return ReformatTimestamps(asString)
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		for _, candidate := range []string{eb.Message, eb.Error, eb.Details} {
			if strings.TrimSpace(candidate) != "" {
				return ReformatTimestamps(candidate)
			}
		}
	}

	if !looksLikeJSON(trimmed) {
		if msg := filterBoilerplate(trimmed); msg != "" {
			return ReformatTimestamps(msg)
		}
	}
	return fallback
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// filterBoilerplate drops messages that are nothing but raw HTTP status
// text, e.g. "Request failed with status code 500".
func filterBoilerplate(msg string) string {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "status code") || strings.Contains(lower, "http status") {
		return ""
	}
	return msg
}
