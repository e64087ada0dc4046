package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// apiError is the wire shape of every failure this API returns. Code is a
// stable machine-readable string (invalid_json, invalid_credentials,
// refresh_rejected, session_expired, mobile_taken, ...); Message is for
// humans and carries no secrets.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// writeJSON renders v with the no-store cache policy. Responses here carry
// tokens and account data, so intermediaries must never cache them.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// decodeJSON reads exactly one JSON value into dst. The body is capped at
// maxBytes, unknown fields are rejected, and trailing data after the value
// fails the decode. Known optional fields stay optional; this only guards
// against typoed or smuggled keys.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("authapi: empty request body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("authapi: trailing data after JSON value")
	}
	return nil
}
