package ai

import (
	"context"
	"strings"

	"github.com/iago/career-agent/internal/cache"
	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/logging"
)

type ClassifierDependencies struct {
	Router    *ModelRouter
	Generator TextGenerator
	Cache     *cache.ResponseCache
	Logger    *logging.Logger
}

// Classifier turns a prompt into a short answer. It never returns an error:
// any provider failure yields domain.ClassifierFailure.
type Classifier struct {
	router    *ModelRouter
	generator TextGenerator
	cache     *cache.ResponseCache
	logger    *logging.Logger
}

func NewClassifier(deps ClassifierDependencies) *Classifier {
	if deps.Router == nil {
		deps.Router = NewModelRouter(ModelRouterConfig{})
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	return &Classifier{
		router:    deps.Router,
		generator: deps.Generator,
		cache:     deps.Cache,
		logger:    deps.Logger,
	}
}

func (c *Classifier) Complete(ctx context.Context, task TaskKind, prompt string) string {
	if c.generator == nil || !c.generator.Available() {
		c.logger.Warn("classifier unavailable", "task", task)
		return domain.ClassifierFailure
	}

	profile := c.router.Select(task)
	signature := cache.Signature(string(task), profile.PrimaryModel, prompt)
	if c.cache != nil {
		if entry, ok := c.cache.Get(signature); ok {
			c.logger.Debug("classifier cache hit", "task", task, "model", entry.ModelID)
			return entry.Text
		}
	}

	text, modelID, err := c.generateWithFallback(ctx, profile, prompt)
	if err != nil {
		c.logger.Warn("classifier call failed", "task", task, "error", err)
		return domain.ClassifierFailure
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ClassifierFailure
	}
	if c.cache != nil {
		c.cache.Set(signature, text, modelID)
	}
	return text
}

func (c *Classifier) generateWithFallback(ctx context.Context, profile ModelProfile, prompt string) (string, string, error) {
	request := GenerateRequest{
		Model:           profile.PrimaryModel,
		Input:           prompt,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}
	primary, err := c.generator.Generate(ctx, request)
	if err == nil {
		return primary.Text, firstNonEmpty(primary.ModelID, profile.PrimaryModel), nil
	}

	if strings.TrimSpace(profile.FallbackModel) == "" || profile.FallbackModel == profile.PrimaryModel || ctx.Err() != nil {
		return "", "", err
	}
	c.logger.Info("classifier falling back", "primary", profile.PrimaryModel, "fallback", profile.FallbackModel, "error", err)

	request.Model = profile.FallbackModel
	fallback, fallbackErr := c.generator.Generate(ctx, request)
	if fallbackErr != nil {
		return "", "", fallbackErr
	}
	return fallback.Text, firstNonEmpty(fallback.ModelID, profile.FallbackModel), nil
}
