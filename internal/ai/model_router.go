package ai

import "strings"

// TaskKind names a classification stage so each can pick its own model.
type TaskKind string

const (
	TaskRelevance  TaskKind = "relevance"
	TaskCategory   TaskKind = "category"
	TaskCompany    TaskKind = "company"
	TaskConnection TaskKind = "connection"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	Primary  string
	Fallback string

	// ExtractionPrimary overrides Primary for the field extraction stages.
	ExtractionPrimary string
}

type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.Primary) == "" {
		config.Primary = "gemini-1.5-flash"
	}
	if strings.TrimSpace(config.ExtractionPrimary) == "" {
		config.ExtractionPrimary = config.Primary
	}
	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskRelevance, TaskCategory:
		return ModelProfile{
			PrimaryModel:    r.config.Primary,
			FallbackModel:   r.config.Fallback,
			Temperature:     0,
			MaxOutputTokens: 16,
		}
	case TaskCompany:
		return ModelProfile{
			PrimaryModel:    r.config.ExtractionPrimary,
			FallbackModel:   r.config.Fallback,
			Temperature:     0,
			MaxOutputTokens: 40,
		}
	case TaskConnection:
		return ModelProfile{
			PrimaryModel:    r.config.ExtractionPrimary,
			FallbackModel:   r.config.Fallback,
			Temperature:     0,
			MaxOutputTokens: 60,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.Primary,
			FallbackModel:   r.config.Fallback,
			Temperature:     0.2,
			MaxOutputTokens: 200,
		}
	}
}
