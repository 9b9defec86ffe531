package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

// Completer is the slice of the LLM client the extractor needs.
type Completer interface {
	GenerateJSONObject(ctx context.Context, system, user string) (string, error)
}

type LLMExtractor struct {
	completer Completer
	prompts   *Prompts
	log       *logger.Logger
}

func NewLLMExtractor(completer Completer, prompts *Prompts, log *logger.Logger) (*LLMExtractor, error) {
	if completer == nil {
		return nil, fmt.Errorf("extractor: completer is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if prompts == nil {
		p, err := LoadPrompts()
		if err != nil {
			return nil, err
		}
		prompts = p
	}
	return &LLMExtractor{
		completer: completer,
		prompts:   prompts,
		log:       log.With("component", "LLMExtractor"),
	}, nil
}

func (x *LLMExtractor) Extract(ctx context.Context, text string, variant Variant, majorHint string) (*types.RawGraph, error) {
	majorHint = strings.TrimSpace(majorHint)
	if variant == VariantJob && majorHint == "" {
		variant = VariantGeneral
	}
	system, user := x.prompts.Render(variant, text, majorHint)

	start := time.Now()
	content, err := x.completer.GenerateJSONObject(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	raw, err := DecodePayload(content)
	if err != nil {
		x.log.Warn("extractor payload rejected", "variant", variant, "content_len", len(content), "error", err)
		return nil, err
	}

	x.log.Info("extraction finished",
		"variant", variant,
		"major", majorHint,
		"entities", len(raw.Entities),
		"relationships", len(raw.Relationships),
		"type_counts", raw.TypeCounts(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if len(raw.Entities) < 3 {
		x.log.Warn("extractor returned very few entities", "entities", len(raw.Entities))
	}
	return raw, nil
}
