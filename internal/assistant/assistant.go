package assistant

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/uniqa/internal/ai"
)

// ProviderFactory builds a provider for a model
type ProviderFactory interface {
	New(model ai.Model) ai.Provider
}

// ModelHolder stores the active model. Safe for concurrent use.
type ModelHolder struct {
	v atomic.Value
}

// NewModelHolder returns a holder initialized to model
func NewModelHolder(model ai.Model) *ModelHolder {
	h := &ModelHolder{}
	h.Store(model)
	return h
}

func (h *ModelHolder) Load() ai.Model {
	if m, ok := h.v.Load().(ai.Model); ok {
		return m
	}
	return ai.DefaultModel
}

func (h *ModelHolder) Store(model ai.Model) {
	h.v.Store(model)
}

type Service struct {
	Holder  *ModelHolder
	Factory ProviderFactory
	logger  zerolog.Logger
}

// NewService creates a new orchestrator with the provided holder and factory
func NewService(holder *ModelHolder, factory ProviderFactory, logger zerolog.Logger) *Service {
	if holder == nil {
		holder = NewModelHolder(ai.DefaultModel)
	}
	return &Service{
		Holder:  holder,
		Factory: factory,
		logger:  logger,
	}
}

// ProcessUserQuery answers one query with the model active at call time.
// Provider errors are logged and returned unchanged.
func (s *Service) ProcessUserQuery(ctx context.Context, query string) (string, error) {
	model := s.Holder.Load()
	provider := s.Factory.New(model)

	start := time.Now()
	reply, err := provider.Generate(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).
			Str("model", string(model)).
			Dur("elapsed", time.Since(start)).
			Msg("provider generation failed")
		return "", err
	}

	s.logger.Debug().
		Str("model", string(model)).
		Int("query_len", len(strings.TrimSpace(query))).
		Dur("elapsed", time.Since(start)).
		Msg("query answered")
	return reply, nil
}

// SetBackendModel switches the model used by subsequent queries
func (s *Service) SetBackendModel(model ai.Model) {
	prev := s.Holder.Load()
	s.Holder.Store(model)
	s.logger.Info().Str("from", string(prev)).Str("to", string(model)).Msg("backend model switched")
}

func (s *Service) BackendModel() ai.Model {
	return s.Holder.Load()
}
