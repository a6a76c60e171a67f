package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"latebird/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (64 KB).
// Post bodies are tiny; anything larger is abuse.
const maxRequestBodySize = 64 << 10

// Envelope is the wire format shared by every endpoint. Success responses
// carry their payload fields merged at the top level next to "success": true;
// error responses carry a human-readable "error" string plus optional retry
// hints.
type Envelope map[string]any

// Success writes a success envelope with the payload fields merged in.
// A nil payload produces a bare {"success": true}.
func Success(w http.ResponseWriter, r *http.Request, status int, payload Envelope) {
	body := Envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	JSON(w, r, status, body)
}

// JSON writes a JSON response with the given status code and body. If
// marshalling fails, it falls back to a minimal 500 error envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// Error writes an error envelope. It inspects the error chain:
//   - A *types.AppError determines the HTTP status from its code; its
//     resetTime and remainingTime details, when present, are lifted to the
//     top level of the envelope so clients can schedule a retry.
//   - Any other error becomes a 500 with a generic message. Wrapped internals
//     are never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		body := Envelope{
			"success": false,
			"error":   appErr.Message,
		}
		if v, ok := appErr.Details["resetTime"]; ok {
			body["resetTime"] = v
		}
		if v, ok := appErr.Details["remainingTime"]; ok {
			body["remainingTime"] = v
		}
		JSON(w, r, appErr.HTTPStatus(), body)
		return
	}

	JSON(w, r, http.StatusInternalServerError, Envelope{
		"success": false,
		"error":   "an unexpected error occurred",
	})
}

// DecodeJSON reads the request body into dst, enforcing a maximum body size
// and rejecting unknown fields, trailing values, and empty bodies. All
// failures come back as a validation_invalid_json AppError (400).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body too large", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid value for field "+typeErr.Field, err)
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid JSON in request body", err)
}
