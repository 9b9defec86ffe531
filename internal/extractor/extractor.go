package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

type Variant string

const (
	// VariantGeneral is for free-form curriculum text.
	VariantGeneral Variant = "general"
	// VariantJob is for aggregated job-posting text of one major.
	VariantJob Variant = "job"
)

// Extractor turns unstructured text into a raw entity/relationship payload.
type Extractor interface {
	Extract(ctx context.Context, text string, variant Variant, majorHint string) (*types.RawGraph, error)
}

var ErrMalformedPayload = errors.New("extractor: malformed payload")

// DecodePayload parses an extractor response. Payloads that are not valid JSON get one
// repair attempt; anything still unparseable, or without an entities array, is an error.
func DecodePayload(content string) (*types.RawGraph, error) {
	content = stripCodeFence(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedPayload)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &top); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(content)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if err := json.Unmarshal([]byte(repaired), &top); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	rawEntities, ok := top["entities"]
	if !ok {
		return nil, fmt.Errorf("%w: no entities field", ErrMalformedPayload)
	}
	out := &types.RawGraph{Entities: []types.RawRecord{}, Relationships: []types.RawRecord{}}
	if err := json.Unmarshal(rawEntities, &out.Entities); err != nil {
		return nil, fmt.Errorf("%w: entities: %v", ErrMalformedPayload, err)
	}
	if rawRels, ok := top["relationships"]; ok && string(rawRels) != "null" {
		if err := json.Unmarshal(rawRels, &out.Relationships); err != nil {
			return nil, fmt.Errorf("%w: relationships: %v", ErrMalformedPayload, err)
		}
	}
	if out.Entities == nil {
		out.Entities = []types.RawRecord{}
	}
	if out.Relationships == nil {
		out.Relationships = []types.RawRecord{}
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
