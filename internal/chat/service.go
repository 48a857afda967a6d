// Package chat runs the concierge pipeline for one request: classify the
// latest message, ground the model on a candidate list, call the completion
// endpoint, resolve the recommended candidates and hydrate them.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/travel-concierge/internal/classifier"
	"github.com/xaenox/travel-concierge/internal/completion"
	"github.com/xaenox/travel-concierge/internal/grounding"
	"github.com/xaenox/travel-concierge/internal/metrics"
	"github.com/xaenox/travel-concierge/internal/models"
	"github.com/xaenox/travel-concierge/internal/prompt"
	"github.com/xaenox/travel-concierge/internal/resolver"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("OpenRouter API key not configured")

type Completer interface {
	Configured() bool
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

type Response struct {
	Message     string              `json:"message"`
	Suggestions *models.Suggestions `json:"suggestions"`
}

type Service struct {
	classifier *classifier.Classifier
	builder    *grounding.Builder
	assembler  *prompt.Assembler
	completer  Completer
	hydrator   *grounding.Hydrator
	logger     *zap.Logger
}

func NewService(
	classifier *classifier.Classifier,
	builder *grounding.Builder,
	assembler *prompt.Assembler,
	completer Completer,
	hydrator *grounding.Hydrator,
	logger *zap.Logger,
) *Service {
	return &Service{
		classifier: classifier,
		builder:    builder,
		assembler:  assembler,
		completer:  completer,
		hydrator:   hydrator,
		logger:     logger,
	}
}

// Answer runs the pipeline over the conversation. Only a missing API key and
// completion failures are returned as errors; store failures degrade to an
// ungrounded answer without suggestions.
func (s *Service) Answer(ctx context.Context, messages []models.ChatMessage) (*Response, error) {
	if !s.completer.Configured() {
		metrics.ChatRequests.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	}

	userMessage := models.LastUserContent(messages)

	cls := s.classifier.Classify(ctx, userMessage)
	set := s.builder.Build(ctx, cls.Intent)
	metrics.GroundingCandidates.WithLabelValues(string(cls.Intent)).Observe(float64(set.Len()))

	s.logger.Info("Chat request classified",
		zap.String("intent", string(cls.Intent)),
		zap.String("trigger", cls.Trigger),
		zap.Int("candidates", set.Len()),
		zap.Int("turns", len(messages)))

	system := s.assembler.System(set)

	start := time.Now()
	reply, err := s.completer.Complete(ctx, prompt.Messages(system, messages))
	outcome := completionOutcome(err)
	metrics.CompletionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChatRequests.WithLabelValues(outcome).Inc()
		return nil, err
	}

	resp := &Response{
		Message:     resolver.StripTags(reply),
		Suggestions: s.suggest(ctx, set, reply, userMessage),
	}

	metrics.ChatRequests.WithLabelValues("ok").Inc()
	return resp, nil
}

func (s *Service) suggest(ctx context.Context, set grounding.Set, reply, userMessage string) *models.Suggestions {
	switch {
	case len(set.Countries) > 0:
		res := resolver.Resolve[string](reply, userMessage, resolver.TagCountries, set.Countries)
		s.logResolution(set.Kind, res.Strategy, len(res.IDs), res.Dropped)
		return s.hydrator.Countries(ctx, res.IDs)

	case len(set.News) > 0:
		res := resolver.Resolve[int64](reply, userMessage, resolver.TagNews, set.News)
		s.logResolution(set.Kind, res.Strategy, len(res.IDs), res.Dropped)
		return s.hydrator.News(ctx, res.IDs)
	}
	return nil
}

func (s *Service) logResolution(kind models.SuggestionKind, strategy resolver.Strategy, resolved int, dropped []int) {
	metrics.Resolutions.WithLabelValues(string(kind), string(strategy)).Inc()

	if len(dropped) > 0 {
		s.logger.Warn("Dropped out-of-range ordinals",
			zap.String("kind", string(kind)),
			zap.Ints("ordinals", dropped))
	}
	s.logger.Info("Reply resolved",
		zap.String("kind", string(kind)),
		zap.String("strategy", string(strategy)),
		zap.Int("resolved", resolved))
}

func completionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, completion.ErrTimeout):
		return "timeout"
	case errors.Is(err, completion.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, completion.ErrUpstreamStatus):
		return "upstream_error"
	case errors.Is(err, completion.ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}
