package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Envelope is the response shape shared by every API endpoint.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK wraps data in a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// DefaultBodyLimit caps JSON bodies decoded by DecodeJSON.
const DefaultBodyLimit int64 = 1 << 20

// DecodeJSON decodes a JSON request body of at most DefaultBodyLimit bytes.
func DecodeJSON(r *http.Request, target any) error {
	return DecodeJSONLimit(r, target, DefaultBodyLimit)
}

// DecodeJSONLimit decodes a JSON request body of at most limit bytes. An
// oversized body is rejected with VAL_006 and status 413.
func DecodeJSONLimit(r *http.Request, target any, limit int64) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &Error{
				Code:    CodeMalformedBody,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Status:  http.StatusRequestEntityTooLarge,
			}
		case errors.Is(err, io.EOF):
			return NewError(CodeMalformedBody, "request body is empty")
		}
		return NewError(CodeMalformedBody, "request body is not valid JSON")
	}
	return nil
}
