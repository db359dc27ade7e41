package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	inner := errors.New("socket closed")
	e := &Error{Model: ModelGeminiFlash, Cause: CauseNetwork, Err: inner}

	if e.Error() != "socket closed" {
		t.Errorf("Expected inner message, got %q", e.Error())
	}
	if !errors.Is(e, inner) {
		t.Error("Expected Unwrap to expose the inner error")
	}
	if errors.Is(e, ErrMissingCredential) {
		t.Error("Network error must not match ErrMissingCredential")
	}

	bare := &Error{Model: ModelMock, Cause: CauseUpstreamUnknown}
	if bare.Error() != "mock-server-response provider error (upstream-unknown)" {
		t.Errorf("Unexpected message %q", bare.Error())
	}
}

func TestCauseOf(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", missingCredential(ModelOpenAIMini, OpenAIKeyEnv, "OpenAI"))
	cause, ok := CauseOf(wrapped)
	if !ok || cause != CauseMissingCredential {
		t.Errorf("Expected missing-credential, got %s (%v)", cause, ok)
	}
	if !errors.Is(wrapped, ErrMissingCredential) {
		t.Error("Expected wrapped error to match ErrMissingCredential")
	}
	if wrapped.Error() != "generate: OPENAI_API_KEY is missing for OpenAI provider" {
		t.Errorf("Unexpected message %q", wrapped.Error())
	}

	if _, ok := CauseOf(errors.New("plain")); ok {
		t.Error("Expected no cause for plain error")
	}
}

func TestStatusCode_Plain(t *testing.T) {
	if _, ok := StatusCode(errors.New("plain")); ok {
		t.Error("Expected no status for plain error")
	}
	if _, ok := StatusCode(nil); ok {
		t.Error("Expected no status for nil")
	}
}
