package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/validate"
)

// decodeJSON reads a single JSON object of type T from the request body,
// rejecting unknown fields and trailing data, then validates it.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, error) {
	var zero T
	defer func() {
		if err := r.Body.Close(); err != nil {
			logging.C(r.Context()).Debug().Err(err).Msg("closing request body")
		}
	}()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var dst T
	if err := dec.Decode(&dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return zero, err
		case errors.Is(err, io.EOF):
			return zero, badRequest("empty body")
		}
		return zero, badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, badRequest("unexpected trailing data")
	}

	if err := validate.Struct(dst); err != nil {
		_, msg := validate.FieldAndMessage(err)
		return zero, unprocessable(msg)
	}
	return dst, nil
}
