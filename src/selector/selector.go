package selector

import (
	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/models"
)

// Selector picks the backend model for a request. Explicit caller choices
// win over the content heuristics.
type Selector struct {
	cfg *config.LLMConfig
}

func New(cfg *config.LLMConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select resolves the model identifier for a request and the reason it was
// chosen. Precedence: forced model, then priority, then the configured
// default when automatic selection is off, then the complexity heuristics.
func (s *Selector) Select(messages []models.Message, opts models.ResolvedOptions) (string, string) {
	if opts.ForceModel != "" {
		return opts.ForceModel, "model forced by caller"
	}

	switch opts.Priority {
	case models.PrioritySpeed:
		return s.cfg.FastModel, "speed priority requested"
	case models.PriorityQuality:
		return s.cfg.PowerfulModel, "quality priority requested"
	}

	if !s.cfg.AutoSelect {
		return s.cfg.DefaultModel, "automatic selection disabled"
	}

	m := analyze(messages)

	if m.TotalLength > powerfulLengthThreshold ||
		m.Complexity > powerfulComplexityThreshold ||
		opts.MaxTokens > powerfulMaxTokensThreshold {
		return s.cfg.PowerfulModel, "long or complex content"
	}

	if m.TotalLength < fastLengthThreshold &&
		m.Complexity < fastComplexityThreshold &&
		opts.MaxTokens < fastMaxTokensThreshold {
		return s.cfg.FastModel, "short simple content"
	}

	return s.cfg.DefaultModel, "balanced content"
}
