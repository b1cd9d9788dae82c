// Package pipeline implements the Auto-Connection Pipeline: bounded
// concurrency parallel fetch over the role-ranked catalog, per-host rate
// limiting, SSRF validation, confidence scoring, and weighted synthesis
// with contradiction detection.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ironmanus/internal/apperr"
	"ironmanus/internal/breaker"
	"ironmanus/internal/catalog"
	"ironmanus/internal/config"
	"ironmanus/internal/domain"
	"ironmanus/internal/obslog"
	"ironmanus/internal/obstel"
	"ironmanus/internal/ratelimit"
	"ironmanus/internal/ssrf"
)

// Pipeline runs the KNOWLEDGE-phase Auto-Connection fetch-and-synthesize
// flow. One Pipeline is shared by every session; its collaborators
// (limiter, breakers, guard) are keyed per-host internally.
type Pipeline struct {
	cfg       config.KnowledgeConfig
	rateCfg   config.RateLimitConfig
	client    *http.Client
	guard     *ssrf.Guard
	limiter   *ratelimit.Limiter
	breakers  *breaker.Registry
	telemetry *obstel.Provider
	logger    obslog.Logger
}

// New wires the pipeline's collaborators. telemetry may be obstel.NoOp().
func New(cfg config.KnowledgeConfig, rateCfg config.RateLimitConfig, guard *ssrf.Guard, limiter *ratelimit.Limiter, breakers *breaker.Registry, telemetry *obstel.Provider, logger obslog.Logger) *Pipeline {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Pipeline{
		cfg:      cfg,
		rateCfg:  rateCfg,
		client:   &http.Client{Transport: transport},
		guard:    guard,
		limiter:  limiter,
		breakers: breakers,
		telemetry: telemetry,
		logger:    obslog.Component(logger, "engine/pipeline"),
	}
}

// Run takes the top N_fetch candidates, fetches them under bounded
// concurrency, and synthesizes the results. It always returns within
// cfg.PhaseBudget of being called; fetches still in flight at the deadline
// are discarded from the synthesis.
func (p *Pipeline) Run(ctx context.Context, candidates []catalog.Scored) domain.SynthesisResult {
	n := p.cfg.FetchCount
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	picks := candidates[:n]

	phaseCtx, cancel := context.WithTimeout(ctx, p.cfg.PhaseBudget)
	defer cancel()

	results := p.fetchAll(phaseCtx, picks)
	return Synthesize(results, p.cfg.ConfidenceThreshold)
}

// fetchAll runs one goroutine per candidate, bounded to cfg.MaxConcurrency
// in flight at a time, and collects every result that arrives before
// phaseCtx's deadline.
func (p *Pipeline) fetchAll(phaseCtx context.Context, picks []catalog.Scored) []domain.APIFetchResult {
	concurrency := p.cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]domain.APIFetchResult, 0, len(picks))
	)

	for _, pick := range picks {
		pick := pick
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-phaseCtx.Done():
				return
			}
			defer func() { <-sem }()

			r := p.fetchOne(phaseCtx, pick)

			select {
			case <-phaseCtx.Done():
				return
			default:
			}

			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// fetchOne resolves, guards, rate-limits, and fetches a single candidate,
// returning its APIFetchResult. A transient failure (network error or
// timeout) classified as apperr.IsRetryable gets one retry, as long as
// the phase budget hasn't already expired.
func (p *Pipeline) fetchOne(ctx context.Context, pick catalog.Scored) domain.APIFetchResult {
	source := pick.Endpoint.Name
	start := time.Now()

	safeURL, ok := p.guard.Validate(pick.Endpoint.URL)
	if !ok {
		p.telemetry.RecordSSRFRejection(ctx, source)
		p.logger.Warn("ssrf guard rejected candidate", map[string]interface{}{"source": source, "url": pick.Endpoint.URL})
		return failureResult(source, string(apperr.KindSSRFBlocked), start)
	}

	host := hostOf(safeURL)

	if !p.limiter.Allow(host, p.rateCfg.RequestsPerWindow, p.rateCfg.Window) {
		p.telemetry.RecordRateLimitRejection(ctx, host)
		return failureResult(source, string(apperr.KindRateLimited), start)
	}

	if p.breakers != nil && !p.breakers.Allow(host) {
		return failureResult(source, "CircuitOpen", start)
	}

	result, err := p.attempt(ctx, source, safeURL, host, start)
	if err != nil && apperr.IsRetryable(err) && ctx.Err() == nil {
		p.logger.Warn("retrying transient fetch failure", map[string]interface{}{"source": source, "error": err.Error()})
		result, err = p.attempt(ctx, source, safeURL, host, start)
	}
	return result
}

// attempt performs a single HTTP round trip for a guarded, rate-limited
// candidate, returning a classified apperr error alongside the result so
// the caller can decide whether to retry.
func (p *Pipeline) attempt(ctx context.Context, source, safeURL, host string, start time.Time) (domain.APIFetchResult, error) {
	ctx, span := p.telemetry.StartFetchSpan(ctx, source)
	defer span.End()

	reqCtx, reqCancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer reqCancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, safeURL, nil)
	if err != nil {
		p.recordOutcome(host, false)
		return failureResult(source, "NetworkError", start), apperr.New("fetch", apperr.KindNetwork, apperr.ErrNetwork)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := p.client.Do(req)
	duration := time.Since(start)
	p.telemetry.RecordFetchDuration(ctx, source, duration)

	if err != nil {
		p.recordOutcome(host, false)
		if reqCtx.Err() != nil {
			return failureResult(source, "TimeoutError", start), apperr.New("fetch", apperr.KindTimeout, apperr.ErrTimeout)
		}
		return failureResult(source, "NetworkError", start), apperr.New("fetch", apperr.KindNetwork, apperr.ErrNetwork)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
	text := truncate(string(body), p.cfg.MaxResponseChars)

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	p.recordOutcome(host, success)

	return domain.APIFetchResult{
		Source:     source,
		Data:       text,
		Confidence: confidence(resp.StatusCode, len(body), duration),
		Success:    success,
		DurationMs: duration.Milliseconds(),
	}, nil
}

func (p *Pipeline) recordOutcome(host string, success bool) {
	if p.breakers == nil {
		return
	}
	if success {
		p.breakers.RecordSuccess(host)
	} else {
		p.breakers.RecordFailure(host)
	}
}

func failureResult(source, reason string, start time.Time) domain.APIFetchResult {
	return domain.APIFetchResult{
		Source:     source,
		Success:    false,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      reason,
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// confidence maps (status, body length, duration) to a deterministic
// score clamped to [0,1].
func confidence(statusCode, bodyLen int, duration time.Duration) float64 {
	score := 0.5
	switch {
	case statusCode == 200:
		score += 0.3
	case statusCode >= 200 && statusCode < 300:
		score += 0.2
	default:
		score -= 0.2
	}
	switch {
	case bodyLen > 100:
		score += 0.2
	case bodyLen > 10:
		score += 0.1
	}
	switch {
	case duration < time.Second:
		score += 0.1
	case duration > 5*time.Second:
		score -= 0.1
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Synthesize filters to the sources worth keeping, labels them by
// confidence tier, assembles a markdown report, detects contradictions,
// and computes overall confidence.
func Synthesize(results []domain.APIFetchResult, threshold float64) domain.SynthesisResult {
	kept := make([]domain.APIFetchResult, 0, len(results))
	for _, r := range results {
		if r.Success && r.Confidence >= threshold && len(r.Data) > 0 {
			kept = append(kept, r)
		}
	}

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}

	if len(kept) == 0 {
		return domain.SynthesisResult{
			SynthesizedContent: "No sources produced usable content; Auto-Connection yielded no synthesis.",
			OverallConfidence:  0,
			Metadata: domain.SynthesisMetadata{
				Total:      len(results),
				Successful: successful,
			},
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })

	var b strings.Builder
	sourcesUsed := make([]string, 0, len(kept))
	confidenceSum := 0.0
	for _, r := range kept {
		sourcesUsed = append(sourcesUsed, r.Source)
		confidenceSum += r.Confidence
		fmt.Fprintf(&b, "### %s [%s confidence: %.2f]\n%s\n\n", r.Source, tier(r.Confidence), r.Confidence, r.Data)
	}

	contradictions := detectContradictions(kept)

	fmt.Fprintf(&b, "---\nSources used: %s\n", strings.Join(sourcesUsed, ", "))
	if len(contradictions) > 0 {
		fmt.Fprintf(&b, "Contradictions detected: %d\n", len(contradictions))
	}

	avgConfidence := confidenceSum / float64(len(kept))
	overall := clamp01(avgConfidence * float64(len(kept)) / float64(len(results)))

	return domain.SynthesisResult{
		SynthesizedContent: b.String(),
		OverallConfidence:  overall,
		SourcesUsed:        sourcesUsed,
		Contradictions:     contradictions,
		Metadata: domain.SynthesisMetadata{
			Total:         len(results),
			Successful:    successful,
			AvgConfidence: avgConfidence,
		},
	}
}

// tier labels a kept source's confidence: High if >0.7, Medium if in
// (0.5,0.7], Low otherwise.
func tier(confidence float64) string {
	switch {
	case confidence > 0.7:
		return "High"
	case confidence > 0.5:
		return "Medium"
	default:
		return "Low"
	}
}

// detectContradictions runs a word-overlap similarity check over every
// unordered pair of kept sources.
func detectContradictions(kept []domain.APIFetchResult) []domain.Contradiction {
	var contradictions []domain.Contradiction
	tokenSets := make([]map[string]struct{}, len(kept))
	for i, r := range kept {
		tokenSets[i] = significantTokens(r.Data)
	}

	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			sim := overlapSimilarity(tokenSets[i], tokenSets[j])
			if sim < 0.3 {
				contradictions = append(contradictions, domain.Contradiction{
					SourceA:    kept[i].Source,
					SourceB:    kept[j].Source,
					Similarity: sim,
				})
			}
		}
	}
	return contradictions
}

func significantTokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) > 3 {
			set[f] = struct{}{}
		}
	}
	return set
}

func overlapSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			common++
		}
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return float64(common) / float64(maxLen)
}
