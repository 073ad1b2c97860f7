package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
)

func newGatewayFixture(providers ...Provider) (*Gateway, *fakeSourceRepo, *fakeHealthRepo, *fakeAttemptRepo) {
	sourceRepo := &fakeSourceRepo{}
	healthRepo := newFakeHealthRepo()
	attemptRepo := &fakeAttemptRepo{}
	health := NewHealthService(healthRepo, attemptRepo, DefaultHealthConfig())
	cfg := DefaultGatewayConfig()
	cfg.RetryBackoff = time.Millisecond
	gw := NewGateway(providers, NewRouter(), health, sourceRepo, cfg, nil)
	return gw, sourceRepo, healthRepo, attemptRepo
}

func rawArticle(ext string) entity.RawArticle {
	return entity.RawArticle{
		ExternalID:  ext,
		Title:       "标题" + ext,
		URL:         "https://mp.example/s?sn=" + ext,
		PublishedAt: time.Now().UTC(),
		RawHash:     "hash-" + ext,
	}
}

func TestFetchWithFailoverFirstCandidateWins(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	provider := &stubProvider{
		name: entity.ProviderTemplateMirror,
		candidates: []Candidate{{
			SubscriptionID: 1,
			Provider:       entity.ProviderTemplateMirror,
			URL:            "https://mirror.example/feed",
			Priority:       20,
			Confidence:     0.55,
			DiscoveredAt:   time.Now().UTC(),
		}},
		probe: ProbeResult{OK: true, LatencyMS: 20},
		fetchFn: func(Candidate) ([]entity.RawArticle, error) {
			return []entity.RawArticle{rawArticle("e1")}, nil
		},
	}
	gw, sourceRepo, _, attemptRepo := newGatewayFixture(provider)

	result := gw.FetchWithFailover(context.Background(), 1, sub, time.Now().Add(-time.Hour))

	require.True(t, result.OK)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "https://mirror.example/feed", result.Candidate.URL)

	// Candidate row was persisted, attempt recorded as SUCCESS.
	rows, _ := sourceRepo.ListActive(context.Background(), 1)
	assert.Len(t, rows, 1)
	require.Len(t, attemptRepo.attempts, 1)
	assert.Equal(t, entity.FetchStatusSuccess, attemptRepo.attempts[0].Status)
}

func TestFetchWithFailoverFallsToSecondCandidate(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	now := time.Now().UTC()
	bad := &stubProvider{
		name: "bad",
		candidates: []Candidate{{
			SubscriptionID: 1, Provider: "bad", URL: "https://bad.example/feed",
			Priority: 10, Confidence: 0.9, DiscoveredAt: now,
		}},
		probe: ProbeResult{OK: false, ErrorKind: entity.ErrKindNotFound, ErrorMessage: "HTTP 404", LatencyMS: 15},
	}
	good := &stubProvider{
		name: "good",
		candidates: []Candidate{{
			SubscriptionID: 1, Provider: "good", URL: "https://good.example/feed",
			Priority: 50, Confidence: 0.5, DiscoveredAt: now,
		}},
		probe: ProbeResult{OK: true, LatencyMS: 10},
		fetchFn: func(Candidate) ([]entity.RawArticle, error) {
			return []entity.RawArticle{rawArticle("e2")}, nil
		},
	}
	gw, _, _, attemptRepo := newGatewayFixture(bad, good)

	result := gw.FetchWithFailover(context.Background(), 1, sub, now.Add(-time.Hour))

	require.True(t, result.OK)
	assert.Equal(t, "https://good.example/feed", result.Candidate.URL)
	require.Len(t, attemptRepo.attempts, 2)
	assert.Equal(t, entity.FetchStatusFailed, attemptRepo.attempts[0].Status)
	assert.Equal(t, entity.ErrKindNotFound, attemptRepo.attempts[0].ErrorKind)
	assert.Equal(t, entity.FetchStatusSuccess, attemptRepo.attempts[1].Status)
}

func TestFetchWithFailoverRetriesTransientFetch(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	calls := 0
	provider := &stubProvider{
		name: entity.ProviderTemplateMirror,
		candidates: []Candidate{{
			SubscriptionID: 1, Provider: entity.ProviderTemplateMirror,
			URL: "https://mirror.example/feed", Priority: 20, Confidence: 0.55,
			DiscoveredAt: time.Now().UTC(),
		}},
		probe: ProbeResult{OK: true},
		fetchFn: func(Candidate) ([]entity.RawArticle, error) {
			calls++
			if calls == 1 {
				return nil, &httpx.StatusError{Code: 502, URL: "https://mirror.example/feed"}
			}
			return []entity.RawArticle{rawArticle("e3")}, nil
		},
	}
	gw, _, _, _ := newGatewayFixture(provider)

	result := gw.FetchWithFailover(context.Background(), 1, sub, time.Now().Add(-time.Hour))
	require.True(t, result.OK)
	assert.Equal(t, 2, calls, "exactly one retry for HTTP_5XX")
}

func TestFetchWithFailoverNoRetryForPermanentError(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	calls := 0
	provider := &stubProvider{
		name: entity.ProviderTemplateMirror,
		candidates: []Candidate{{
			SubscriptionID: 1, Provider: entity.ProviderTemplateMirror,
			URL: "https://mirror.example/feed", Priority: 20, Confidence: 0.55,
			DiscoveredAt: time.Now().UTC(),
		}},
		probe: ProbeResult{OK: true},
		fetchFn: func(Candidate) ([]entity.RawArticle, error) {
			calls++
			return nil, &httpx.StatusError{Code: 404, URL: "https://mirror.example/feed"}
		},
	}
	gw, _, _, _ := newGatewayFixture(provider)

	result := gw.FetchWithFailover(context.Background(), 1, sub, time.Now().Add(-time.Hour))
	require.False(t, result.OK)
	assert.Equal(t, 1, calls)
	assert.Equal(t, entity.ErrKindNotFound, result.ErrorKind)
}

func TestFetchWithFailoverSkipsOpenCircuit(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	candidate := Candidate{
		SubscriptionID: 1, Provider: entity.ProviderTemplateMirror,
		URL: "https://mirror.example/feed", Priority: 20, Confidence: 0.55,
		DiscoveredAt: time.Now().UTC(),
	}
	provider := &stubProvider{
		name:       entity.ProviderTemplateMirror,
		candidates: []Candidate{candidate},
		probe:      ProbeResult{OK: true},
	}
	gw, _, healthRepo, attemptRepo := newGatewayFixture(provider)

	// Seed an open circuit still inside its cooldown window.
	until := time.Now().UTC().Add(10 * time.Minute)
	require.NoError(t, healthRepo.Upsert(context.Background(), &entity.SourceHealth{
		SubscriptionID:      1,
		Provider:            candidate.Provider,
		SourceURL:           candidate.URL,
		State:               entity.HealthStateOpen,
		ConsecutiveFailures: 3,
		CooldownUntil:       &until,
	}))

	result := gw.FetchWithFailover(context.Background(), 1, sub, time.Now().Add(-time.Hour))

	require.False(t, result.OK)
	assert.Equal(t, 0, provider.probeCalls, "no probe while the circuit is open")
	assert.Equal(t, 0, provider.fetchCalls, "no fetch while the circuit is open")
	require.Len(t, attemptRepo.attempts, 1)
	assert.Equal(t, entity.FetchStatusSkipped, attemptRepo.attempts[0].Status)
	assert.Equal(t, entity.ErrKindCircuitOpen, attemptRepo.attempts[0].ErrorKind)
}

func TestFetchWithFailoverBoundedByMaxCandidates(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	now := time.Now().UTC()
	candidates := make([]Candidate, 0, 5)
	for i := 0; i < 5; i++ {
		candidates = append(candidates, Candidate{
			SubscriptionID: 1, Provider: "flaky",
			URL:      "https://flaky.example/feed/" + string(rune('a'+i)),
			Priority: 10 + i, Confidence: 0.5, DiscoveredAt: now,
		})
	}
	provider := &stubProvider{
		name:       "flaky",
		candidates: candidates,
		probe:      ProbeResult{OK: false, ErrorKind: entity.ErrKindNetwork, ErrorMessage: "connection refused"},
	}
	gw, _, _, attemptRepo := newGatewayFixture(provider)

	result := gw.FetchWithFailover(context.Background(), 1, sub, now.Add(-time.Hour))

	require.False(t, result.OK)
	assert.Equal(t, entity.ErrKindNetwork, result.ErrorKind)
	assert.Len(t, attemptRepo.attempts, 3, "iteration bounded by max_candidates")
}

func TestFetchWithFailoverNoCandidates(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "ghost"}
	provider := &stubProvider{name: "empty"}
	gw, _, _, _ := newGatewayFixture(provider)

	result := gw.FetchWithFailover(context.Background(), 1, sub, time.Now())
	require.False(t, result.OK)
	assert.Equal(t, entity.ErrKindNotFound, result.ErrorKind)
}

func TestDiscoverCandidatesDemotesLegacyManualPins(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme", SourceMode: entity.SourceModeAuto}
	provider := &stubProvider{name: "noop"}
	gw, sourceRepo, _, _ := newGatewayFixture(provider)

	require.NoError(t, sourceRepo.Upsert(context.Background(), &entity.SubscriptionSource{
		SubscriptionID: 1,
		Provider:       entity.ProviderManual,
		SourceURL:      "https://legacy.example/feed",
		Priority:       0,
		Pinned:         true,
		Confidence:     1,
		DiscoveredAt:   time.Now().UTC(),
		MetadataJSON:   `{"legacy":true}`,
	}))

	_, err := gw.DiscoverCandidates(context.Background(), sub)
	require.NoError(t, err)

	rows, _ := sourceRepo.ListByProvider(context.Background(), 1, entity.ProviderManual)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Pinned)
	assert.False(t, rows[0].Active)
	assert.GreaterOrEqual(t, rows[0].Priority, 95)
}

func TestDiscoverCandidatesDeactivatesWeakDirectoryRows(t *testing.T) {
	sub := &entity.Subscription{ID: 1, WechatID: "acme"}
	provider := &stubProvider{name: "noop"}
	gw, sourceRepo, _, _ := newGatewayFixture(provider)

	require.NoError(t, sourceRepo.Upsert(context.Background(), &entity.SubscriptionSource{
		SubscriptionID: 1,
		Provider:       entity.ProviderDirectoryIndex,
		SourceURL:      "https://index.example/feed/weak.xml",
		Priority:       60,
		Confidence:     0.2,
		DiscoveredAt:   time.Now().UTC(),
		MetadataJSON:   `{"name":"weak","score":3}`,
	}))

	_, err := gw.DiscoverCandidates(context.Background(), sub)
	require.NoError(t, err)

	rows, _ := sourceRepo.ListByProvider(context.Background(), 1, entity.ProviderDirectoryIndex)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Active)
}
