package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Token-bearing responses must never be cached by intermediaries.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// APIError is the JSON error body returned by every endpoint.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// WithDescription returns a copy of e carrying a request-specific message.
func (e *APIError) WithDescription(format string, args ...any) *APIError {
	cp := *e
	cp.Description = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrBadRequest   = &APIError{StatusCode: http.StatusBadRequest, Code: "invalid_request"}
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized, Code: "unauthorized"}
	ErrForbidden    = &APIError{StatusCode: http.StatusForbidden, Code: "forbidden"}
	ErrNotFound     = &APIError{StatusCode: http.StatusNotFound, Code: "not_found"}
	ErrConflict     = &APIError{StatusCode: http.StatusConflict, Code: "conflict"}
	ErrInternal     = &APIError{StatusCode: http.StatusInternalServerError, Code: "server_error", Description: "internal error"}
)

// WriteError writes err as an APIError. Anything that is not an APIError is
// reported as a bare 500 so internals never leak to the client.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = ErrInternal
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	WriteJSON(w, apiErr.StatusCode, apiErr)
}

// DecodeJSON reads a single JSON object from the request body into dst,
// rejecting unknown fields and trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBadRequest.WithDescription("request body is empty")
		}
		return ErrBadRequest.WithDescription("malformed JSON body")
	}
	if dec.More() {
		return ErrBadRequest.WithDescription("request body must contain a single JSON object")
	}
	return nil
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
