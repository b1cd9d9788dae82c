package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ironmanus/internal/catalog"
	"ironmanus/internal/domain"
	"ironmanus/internal/pipeline"
)

type apiTaskAgentArgs struct {
	Objective          string            `json:"objective"`
	UserRole           string            `json:"user_role"`
	ResearchDepth      int               `json:"research_depth"`
	ValidationRequired bool              `json:"validation_required"`
	MaxSources         int               `json:"max_sources"`
	CategoryFilter     string            `json:"category_filter"`
	TimeoutMs          int               `json:"timeout_ms"`
	Headers            map[string]string `json:"headers"`
}

// NewAPITaskAgent adapts the catalog and pipeline into the APITaskAgent
// tool: discover (SelectRelevantAPIs) -> validate (category filter,
// SSRF/rate-limit inside the pipeline) -> fetch -> synthesize, returning a
// formatted report. headers is accepted but not passed to outbound
// requests, so catalog entries whose auth_type is APIKey or OAuth are
// fetched without credentials.
func NewAPITaskAgent(cat *catalog.Catalog, pipe *pipeline.Pipeline) Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) Response {
		var args apiTaskAgentArgs
		if err := unmarshalArgs(rawArgs, &args); err != nil {
			return errorResponse("APITaskAgent", err)
		}
		if args.Objective == "" {
			return errorResponse("APITaskAgent", fmt.Errorf("objective is required"))
		}

		maxSources := args.MaxSources
		if maxSources <= 0 {
			maxSources = 3
		}

		role := domain.Role(strings.ToLower(args.UserRole))
		candidates := cat.SelectRelevantAPIs(args.Objective, role, maxSources)
		if args.CategoryFilter != "" {
			candidates = filterByCategory(candidates, args.CategoryFilter)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if args.TimeoutMs > 0 {
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(args.TimeoutMs)*time.Millisecond)
			defer cancel()
		}

		result := pipe.Run(callCtx, candidates)
		return text(formatReport(args, result))
	}
}

func filterByCategory(candidates []catalog.Scored, category string) []catalog.Scored {
	out := make([]catalog.Scored, 0, len(candidates))
	for _, c := range candidates {
		if strings.EqualFold(c.Endpoint.Category, category) {
			out = append(out, c)
		}
	}
	return out
}

func formatReport(args apiTaskAgentArgs, result domain.SynthesisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research report for: %s\n", args.Objective)
	fmt.Fprintf(&b, "Sources consulted: %d, overall confidence: %.2f\n\n", result.Metadata.Total, result.OverallConfidence)
	b.WriteString(result.SynthesizedContent)

	if len(result.SourcesUsed) > 0 {
		b.WriteString("\n\nSources used: ")
		b.WriteString(strings.Join(result.SourcesUsed, ", "))
	}

	if args.ValidationRequired && len(result.Contradictions) > 0 {
		b.WriteString("\n\nContradictions detected during validation:")
		for _, c := range result.Contradictions {
			fmt.Fprintf(&b, "\n- %s vs %s (similarity %.2f)", c.SourceA, c.SourceB, c.Similarity)
		}
	}
	return b.String()
}
