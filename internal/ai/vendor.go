package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Temperature is the fixed sampling temperature for vendor calls
const Temperature float32 = 0.2

// NoResponse is returned when a vendor replies with no text
const NoResponse = "No response generated."

// Request is a single non-conversational generation call
type Request struct {
	Model             string
	SystemInstruction string
	Content           string
	Temperature       float32
}

// Generator is the vendor SDK seam: one call, instruction plus user content in, text out
type Generator interface {
	GenerateText(ctx context.Context, req Request) (string, error)
}

// Dialer constructs a Generator from a credential
type Dialer func(apiKey string) (Generator, error)

// VendorProvider serves one vendor-backed model. The Generator is built on
// first use and reused for the lifetime of the provider.
type VendorProvider struct {
	model      Model
	credential string
	label      string
	apiKey     string
	dial       Dialer
	composer   Augmenter

	mu  sync.Mutex
	gen Generator
}

// NewVendorProvider creates a provider for model. credential is the name of
// the configuration variable holding apiKey; label is the vendor's display name.
func NewVendorProvider(model Model, credential, label, apiKey string, dial Dialer, composer Augmenter) *VendorProvider {
	return &VendorProvider{
		model:      model,
		credential: credential,
		label:      label,
		apiKey:     apiKey,
		dial:       dial,
		composer:   composer,
	}
}

// Model returns the model this provider serves
func (p *VendorProvider) Model() Model { return p.model }

func (p *VendorProvider) client() (Generator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != nil {
		return p.gen, nil
	}
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, missingCredential(p.model, p.credential, p.label)
	}
	g, err := p.dial(p.apiKey)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", p.label, err)
	}
	p.gen = g
	return g, nil
}

// Generate retrieves context for query and asks the vendor for an answer
// grounded in it. Vendor errors are returned as-is.
func (p *VendorProvider) Generate(ctx context.Context, query string) (string, error) {
	g, err := p.client()
	if err != nil {
		return "", err
	}

	aug := p.composer.Augment(query)

	text, err := g.GenerateText(ctx, Request{
		Model:             string(p.model),
		SystemInstruction: aug.Prompt,
		Content:           query,
		Temperature:       Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return NoResponse, nil
	}
	return text, nil
}
