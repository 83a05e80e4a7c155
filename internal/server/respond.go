package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/marginalia/internal/document"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/providers"
	"github.com/dshills/marginalia/internal/review"
)

// Envelope is the response body of every JSON endpoint.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// apiError carries an HTTP status for a client-facing error.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func unprocessable(msg string) error {
	return &apiError{status: http.StatusUnprocessableEntity, msg: msg}
}

// httpStatus maps an error to a response status.
func httpStatus(err error) int {
	var ae *apiError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &ae):
		return ae.status
	case errors.As(err, &tooBig), errors.Is(err, document.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, document.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrUnknownPersona), errors.Is(err, review.ErrNoPersonas):
		return http.StatusBadRequest
	case providers.IsAuthError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Status:     http.StatusText(http.StatusOK),
		RequestID:  chimw.GetReqID(r.Context()),
		Data:       data,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.C(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Error:      msg,
		RequestID:  chimw.GetReqID(r.Context()),
	})
}

// handle adapts an error-returning handler.
func handle(fn func(w http.ResponseWriter, r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(w, r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondOK(w, r, out)
	}
}
