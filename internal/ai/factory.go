package ai

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Factory creates a fresh Provider per call for the requested model
type Factory struct {
	config   *ClientConfig
	composer Augmenter
	logger   zerolog.Logger
	http     *http.Client

	// Dialers override vendor client construction, keyed by vendor
	Dialers map[Vendor]Dialer
}

// NewFactory returns a Factory wired to the real vendor SDKs
func NewFactory(config *ClientConfig, composer Augmenter, logger zerolog.Logger) *Factory {
	if config == nil {
		config = &ClientConfig{}
	}
	f := &Factory{
		config:   config,
		composer: composer,
		logger:   logger,
		http:     newHTTPClient(config),
	}
	f.Dialers = map[Vendor]Dialer{
		VendorGemini: func(apiKey string) (Generator, error) {
			return NewGeminiClient(context.Background(), apiKey, f.config.GeminiBaseURL, f.http)
		},
		VendorOpenAI: func(apiKey string) (Generator, error) {
			return NewOpenAIClient(apiKey, f.config.OpenAIBaseURL, f.http), nil
		},
	}
	return f
}

// New returns a provider for model. Unknown models are logged and replaced
// by DefaultModel, so New never fails.
func (f *Factory) New(model Model) Provider {
	if !model.Valid() {
		f.logger.Warn().Str("model", string(model)).Str("fallback", string(DefaultModel)).Msg("unknown provider model, using default")
		model = DefaultModel
	}

	switch model.Vendor() {
	case VendorMock:
		return &MockProvider{Delay: f.config.MockDelay}
	case VendorOpenAI:
		return NewVendorProvider(model, OpenAIKeyEnv, "OpenAI", f.config.OpenAIKey, f.Dialers[VendorOpenAI], f.composer)
	default:
		return NewVendorProvider(model, GeminiKeyEnv, "Gemini", f.config.GeminiKey, f.Dialers[VendorGemini], f.composer)
	}
}
