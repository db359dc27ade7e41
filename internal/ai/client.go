package ai

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/seanblong/uniqa/internal/prompt"
)

// Provider answers a single, stateless user query
type Provider interface {
	Generate(ctx context.Context, query string) (string, error)
}

// Augmenter runs retrieval and prompt composition for a query
type Augmenter interface {
	Augment(query string) prompt.Augmented
}

// Model is the enumeration of supported provider variants. For vendor
// variants the value doubles as the vendor model name.
type Model string

const (
	ModelGeminiFlash Model = "gemini-2.5-flash"
	ModelGeminiPro   Model = "gemini-2.5-pro"
	ModelOpenAIMini  Model = "gpt-4.1-mini"
	ModelOpenAINano  Model = "gpt-4.1-nano"
	ModelGPT52Nano   Model = "gpt-5.2-nano"
	ModelMock        Model = "mock-server-response"
)

// DefaultModel is used when no model, or an unknown one, is configured
const DefaultModel = ModelGeminiFlash

// Vendor groups models served by the same backend
type Vendor string

const (
	VendorGemini Vendor = "gemini"
	VendorOpenAI Vendor = "openai"
	VendorMock   Vendor = "mock"
)

var models = []Model{ModelGeminiFlash, ModelGeminiPro, ModelOpenAIMini, ModelOpenAINano, ModelGPT52Nano, ModelMock}

// modelNames maps symbolic names accepted in configuration to models
var modelNames = map[string]Model{
	"GEMINI_FLASH": ModelGeminiFlash,
	"GEMINI_PRO":   ModelGeminiPro,
	"OPENAI_MINI":  ModelOpenAIMini,
	"OPENAI_NANO":  ModelOpenAINano,
	"OPENAI_GPT4":  ModelGPT52Nano,
	"OPENAI_GPT5":  ModelOpenAIMini,
	"MOCK":         ModelMock,
	"MOCK_MODEL":   ModelMock,
}

// Models lists every supported model
func Models() []Model {
	return append([]Model(nil), models...)
}

// Valid reports whether m is a supported model
func (m Model) Valid() bool {
	for _, v := range models {
		if v == m {
			return true
		}
	}
	return false
}

// Vendor returns the backend serving m
func (m Model) Vendor() Vendor {
	switch m {
	case ModelOpenAIMini, ModelOpenAINano, ModelGPT52Nano:
		return VendorOpenAI
	case ModelMock:
		return VendorMock
	default:
		return VendorGemini
	}
}

// ParseModel accepts a model value ("gemini-2.5-flash") or a symbolic name
// ("GEMINI_FLASH"), case-insensitively. Empty input yields DefaultModel. The
// boolean is false when raw was not recognized and DefaultModel was returned.
func ParseModel(raw string) (Model, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultModel, true
	}
	if m := Model(strings.ToLower(raw)); m.Valid() {
		return m, true
	}
	if m, ok := modelNames[strings.ToUpper(raw)]; ok {
		return m, true
	}
	return DefaultModel, false
}

// ClientConfig holds configuration for vendor clients
type ClientConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiBaseURL string
	Timeout       time.Duration
	MockDelay     time.Duration
	SkipTLSVerify bool
}

// DefaultTimeout bounds a single vendor call
const DefaultTimeout = 60 * time.Second

// newHTTPClient builds the HTTP client shared by vendor SDKs
func newHTTPClient(config *ClientConfig) *http.Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	// for corporate proxies that re-sign TLS
	if config.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
