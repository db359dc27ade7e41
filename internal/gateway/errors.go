package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/seanblong/uniqa/internal/ai"
)

// Kind is the gateway error taxonomy
type Kind string

const (
	KindConfiguration       Kind = "ConfigurationError"
	KindUpstreamOverload    Kind = "UpstreamOverload"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	KindUpstreamUnknown     Kind = "UpstreamUnknown"
	KindValidation          Kind = "ValidationError"
	KindPolicyRejection     Kind = "PolicyRejection"
)

const (
	msgNotConfigured    = "LLM provider is not configured."
	msgOverloaded       = "LLM provider is overloaded. Please retry later."
	msgUnavailable      = "LLM provider is temporarily unavailable."
	msgInternal         = "Internal server error"
	msgMessageRequired  = "Message is required"
	msgInvalidBody      = "Invalid request body"
	msgBodyTooLarge     = "Request body too large"
	msgCORSBlocked      = "CORS policy blocked this request."
	msgTooManyRequests  = "Too many requests. Please try again later."
	msgNotFound         = "Not found"
	msgMethodNotAllowed = "Method not allowed"

	maxDetailLen = 200
)

// Mapped is the client-facing form of a failure. Detail is for server logs
// only.
type Mapped struct {
	Kind    Kind
	Status  int
	Message string
	Detail  string
}

// credentialNames appear in "<name> is missing" style messages
var credentialNames = []string{"api_key", "api key", "apikey", "credential"}

var overloadMarkers = []string{"429", "rate limit", "resource_exhausted", "overloaded", "too many requests", "quota"}

var networkCodes = map[string]bool{
	"ETIMEDOUT":    true,
	"ECONNRESET":   true,
	"ECONNREFUSED": true,
	"ENOTFOUND":    true,
	"EAI_AGAIN":    true,
}

var networkMarkers = []string{"network", "fetch failed", "econnrefused", "econnreset", "etimedout", "enotfound", "eai_again"}

// Classify maps a provider failure to a response. Checks run in priority
// order: missing credential, overload, network, then unknown.
func Classify(err error) Mapped {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)
	cause, _ := ai.CauseOf(err)

	switch {
	case cause == ai.CauseMissingCredential || errors.Is(err, ai.ErrMissingCredential) || isMissingCredentialMessage(lower):
		return Mapped{Kind: KindConfiguration, Status: http.StatusServiceUnavailable, Message: msgNotConfigured}
	case cause == ai.CauseRateLimited || isOverload(err, lower):
		return Mapped{Kind: KindUpstreamOverload, Status: http.StatusServiceUnavailable, Message: msgOverloaded}
	case cause == ai.CauseNetwork || isNetwork(err, lower):
		return Mapped{Kind: KindUpstreamUnavailable, Status: http.StatusBadGateway, Message: msgUnavailable}
	}
	return Mapped{
		Kind:    KindUpstreamUnknown,
		Status:  http.StatusInternalServerError,
		Message: msgInternal,
		Detail:  truncate(msg, maxDetailLen),
	}
}

func isMissingCredentialMessage(lower string) bool {
	if strings.Contains(lower, "api_key is missing") {
		return true
	}
	if !strings.Contains(lower, "missing") {
		return false
	}
	for _, name := range credentialNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func isOverload(err error, lower string) bool {
	if code, ok := ai.StatusCode(err); ok && code == http.StatusTooManyRequests {
		return true
	}
	for _, m := range overloadMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// coder matches errors that carry a symbolic code such as "ECONNREFUSED"
type coder interface {
	Code() string
}

func isNetwork(err error, lower string) bool {
	if err == nil {
		return false
	}
	var c coder
	if errors.As(err, &c) && networkCodes[strings.ToUpper(c.Code())] {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, m := range networkMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
