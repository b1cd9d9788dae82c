package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironmanus/internal/breaker"
	"ironmanus/internal/catalog"
	"ironmanus/internal/config"
	"ironmanus/internal/domain"
	"ironmanus/internal/obslog"
	"ironmanus/internal/obstel"
	"ironmanus/internal/ratelimit"
	"ironmanus/internal/ssrf"
)

// newTestPipeline builds a pipeline from the default config. httptest
// servers listen on loopback, which an enabled SSRF guard rejects, so tests
// that fetch from one pass ssrfEnabled=false.
func newTestPipeline(t *testing.T, ssrfEnabled bool) *Pipeline {
	t.Helper()
	cfg, err := config.NewConfig()
	require.NoError(t, err)
	return New(cfg.Knowledge, cfg.RateLimit, ssrf.New(ssrfEnabled, nil), ratelimit.New(), breaker.NewRegistry(breaker.DefaultConfig()), obstel.NoOp(), obslog.NoOpLogger{})
}

func candidateFor(url string) catalog.Scored {
	return catalog.Scored{Endpoint: catalog.Endpoint{Name: "test-source", URL: url, Category: "reference", ReliabilityScore: 0.9}}
}

func TestFetchOneSuccessComputesConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"fact":"cats sleep most of their lives and that is a long sentence"}`))
	}))
	defer srv.Close()

	p := newTestPipeline(t, false)
	result := p.fetchOne(t.Context(), candidateFor(srv.URL))

	assert.True(t, result.Success)
	assert.Greater(t, result.Confidence, 0.5)
}

func TestFetchOneRejectsSSRFCandidate(t *testing.T) {
	p := newTestPipeline(t, true)
	result := p.fetchOne(t.Context(), candidateFor("http://169.254.169.254/latest/meta-data"))

	assert.False(t, result.Success)
	assert.Equal(t, "SSRFBlocked", result.Error)
}

func TestFetchOneRespectsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg, err := config.NewConfig(config.WithRateLimit(1, time.Minute))
	require.NoError(t, err)
	p := New(cfg.Knowledge, cfg.RateLimit, ssrf.New(false, nil), ratelimit.New(), breaker.NewRegistry(breaker.DefaultConfig()), obstel.NoOp(), obslog.NoOpLogger{})

	first := p.fetchOne(t.Context(), candidateFor(srv.URL))
	second := p.fetchOne(t.Context(), candidateFor(srv.URL))

	assert.True(t, first.Success)
	assert.False(t, second.Success)
	assert.Equal(t, "RateLimited", second.Error)
}

func TestFetchOneRetriesOnceAfterTransientNetworkError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("simulated connection reset")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"fact":"a long enough body to score well on confidence"}`))
	}))
	defer srv.Close()

	p := newTestPipeline(t, false)
	result := p.fetchOne(t.Context(), candidateFor(srv.URL))

	assert.Equal(t, 2, calls, "a transient network error must trigger exactly one retry")
	assert.True(t, result.Success)
}

func TestSynthesizeFallsBackWhenNoSourceSurvives(t *testing.T) {
	results := []domain.APIFetchResult{
		{Source: "a", Success: false, Error: "NetworkError"},
		{Source: "b", Success: true, Confidence: 0.1, Data: "short"},
	}
	out := Synthesize(results, 0.3)
	assert.Equal(t, 0.0, out.OverallConfidence)
	assert.Empty(t, out.SourcesUsed)
}

func TestSynthesizeBuildsReportAndDetectsContradictions(t *testing.T) {
	results := []domain.APIFetchResult{
		{Source: "a", Success: true, Confidence: 0.9, Data: "cats sleep between twelve and sixteen hours every single day"},
		{Source: "b", Success: true, Confidence: 0.8, Data: "mountains form slowly over millions of years through tectonic collision"},
	}
	out := Synthesize(results, 0.3)

	assert.Contains(t, out.SynthesizedContent, "a")
	assert.Contains(t, out.SynthesizedContent, "b")
	assert.Len(t, out.SourcesUsed, 2)
	assert.NotEmpty(t, out.Contradictions)
	assert.Greater(t, out.OverallConfidence, 0.0)
}

func TestSynthesizeOverallConfidenceIsScaledByKeptRatio(t *testing.T) {
	results := []domain.APIFetchResult{
		{Source: "a", Success: true, Confidence: 0.9, Data: "a decently long passage of reference content about oceans"},
		{Source: "b", Success: false, Error: "TimeoutError"},
	}
	out := Synthesize(results, 0.3)
	assert.InDelta(t, 0.45, out.OverallConfidence, 0.01)
}

func TestRunHonorsPhaseBudget(t *testing.T) {
	cfg, err := config.NewConfig()
	require.NoError(t, err)
	cfg.Knowledge.PhaseBudget = 5 * time.Millisecond
	p := New(cfg.Knowledge, cfg.RateLimit, ssrf.New(false, nil), ratelimit.New(), breaker.NewRegistry(breaker.DefaultConfig()), obstel.NoOp(), obslog.NoOpLogger{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := p.Run(t.Context(), []catalog.Scored{candidateFor(srv.URL)})
	assert.Equal(t, 0.0, out.OverallConfidence)
}
