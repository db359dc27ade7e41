package ai

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Cause classifies why a provider call failed
type Cause string

const (
	CauseMissingCredential Cause = "missing-credential"
	CauseRateLimited       Cause = "rate-limited"
	CauseNetwork           Cause = "network"
	CauseUpstreamUnknown   Cause = "upstream-unknown"
)

// ErrMissingCredential matches any Error with CauseMissingCredential
var ErrMissingCredential = errors.New("provider credential is missing")

// Error is a provider failure with a machine-readable cause
type Error struct {
	Model Model
	Cause Cause
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s provider error (%s)", e.Model, e.Cause)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMissingCredential) match by cause
func (e *Error) Is(target error) bool {
	return target == ErrMissingCredential && e.Cause == CauseMissingCredential
}

// missingCredential reports an unset credential by its variable name, e.g.
// "GEMINI_API_KEY is missing for Gemini provider."
func missingCredential(model Model, credential, label string) *Error {
	return &Error{
		Model: model,
		Cause: CauseMissingCredential,
		Err:   fmt.Errorf("%s is missing for %s provider", credential, label),
	}
}

// CauseOf returns the cause attached to err, if any
func CauseOf(err error) (Cause, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Cause, true
	}
	return "", false
}

// StatusCode extracts the HTTP status a vendor SDK attached to err
func StatusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
