package review

import (
	"errors"
	"fmt"

	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/providers"
)

// ErrUnknownPersona is returned by Retry for a persona that is not part of the
// report.
var ErrUnknownPersona = errors.New("unknown persona")

// ErrNoPersonas is returned by Run when no personas are selected.
var ErrNoPersonas = errors.New("no personas selected")

// ReviewerError is the error of one persona's review.
type ReviewerError struct {
	Persona string
	Err     error
}

func (e *ReviewerError) Error() string {
	return fmt.Sprintf("reviewer %s: %v", e.Persona, e.Err)
}

func (e *ReviewerError) Unwrap() error { return e.Err }

// IsInvalidResult reports whether err is a reviewer result that failed
// validation.
func IsInvalidResult(err error) bool {
	return errors.Is(err, feedback.ErrInvalidResult)
}

func failureOf(p Persona, provider, model string, err error) Failure {
	return Failure{
		Persona:  p,
		Provider: provider,
		Model:    model,
		Error:    err.Error(),
		Auth:     providers.IsAuthError(err),
		Invalid:  IsInvalidResult(err),
		err:      &ReviewerError{Persona: p.ID, Err: err},
	}
}

// Err returns the failure as a *ReviewerError. Failures decoded from JSON
// carry only the message.
func (f Failure) Err() error {
	if f.err != nil {
		return f.err
	}
	return &ReviewerError{Persona: f.Persona.ID, Err: errors.New(f.Error)}
}

// Err joins the errors of every failed persona, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err())
	}
	return errors.Join(errs...)
}
