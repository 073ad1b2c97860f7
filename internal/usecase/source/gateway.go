package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	"github.com/v6582374-netizen/Cerebro/internal/observability/metrics"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
	"github.com/v6582374-netizen/Cerebro/internal/resilience/retry"
)

// DirectoryMinScore is the floor under which stored directory-index
// candidates are deactivated.
const DirectoryMinScore = 6

// GatewayConfig bounds the failover iteration.
type GatewayConfig struct {
	MaxCandidates int
	RetryBackoff  time.Duration
}

// DefaultGatewayConfig returns the default failover bounds.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{MaxCandidates: 3, RetryBackoff: 800 * time.Millisecond}
}

// Gateway composes providers, the router and the health service into a
// failover fetch with bounded candidates and bounded retries.
type Gateway struct {
	providers  map[string]Provider
	order      []string
	router     *Router
	health     *HealthService
	sourceRepo repository.SourceRepository
	cfg        GatewayConfig
	logger     *slog.Logger
}

// NewGateway creates a Gateway. Provider iteration follows registration order.
func NewGateway(providers []Provider, router *Router, health *HealthService, sourceRepo repository.SourceRepository, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if cfg.MaxCandidates < 1 {
		cfg.MaxCandidates = 1
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, provider := range providers {
		byName[provider.Name()] = provider
		order = append(order, provider.Name())
	}
	return &Gateway{
		providers:  byName,
		order:      order,
		router:     router,
		health:     health,
		sourceRepo: sourceRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// DiscoverCandidates runs every provider's discovery, persists the candidate
// rows, folds in previously stored active rows, and returns the ranked list.
func (g *Gateway) DiscoverCandidates(ctx context.Context, sub *entity.Subscription) ([]Candidate, error) {
	if err := g.demoteLegacyManualSources(ctx, sub); err != nil {
		return nil, fmt.Errorf("DiscoverCandidates: %w", err)
	}
	if err := g.deactivateWeakDirectorySources(ctx, sub); err != nil {
		return nil, fmt.Errorf("DiscoverCandidates: %w", err)
	}

	now := time.Now().UTC()
	dedup := make(map[string]Candidate)
	for _, name := range g.order {
		provider := g.providers[name]
		candidates, err := provider.Discover(ctx, sub)
		if err != nil {
			g.logger.Warn("provider discovery failed",
				slog.String("provider", name),
				slog.String("wechat_id", sub.WechatID),
				slog.Any("error", err))
			continue
		}
		for _, candidate := range candidates {
			key := candidate.Key()
			previous, seen := dedup[key]
			if !seen || candidate.Priority < previous.Priority {
				dedup[key] = candidate
			}
			if err := g.upsertCandidate(ctx, candidate, now); err != nil {
				return nil, fmt.Errorf("DiscoverCandidates: %w", err)
			}
		}
	}

	stored, err := g.sourceRepo.ListActive(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("DiscoverCandidates: %w", err)
	}
	for _, row := range stored {
		key := row.Provider + "|" + row.SourceURL
		if _, seen := dedup[key]; seen {
			continue
		}
		dedup[key] = Candidate{
			SubscriptionID: sub.ID,
			Provider:       row.Provider,
			URL:            row.SourceURL,
			Priority:       row.Priority,
			Pinned:         row.Pinned,
			Confidence:     row.Confidence,
			DiscoveredAt:   row.DiscoveredAt,
			MetadataJSON:   row.MetadataJSON,
		}
	}

	healthMap, err := g.health.LoadHealthMap(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("DiscoverCandidates: %w", err)
	}
	merged := make([]Candidate, 0, len(dedup))
	for _, candidate := range dedup {
		merged = append(merged, candidate)
	}
	return g.router.Rank(sub, merged, healthMap), nil
}

// FetchWithFailover iterates the ranked candidates, bounded by
// MaxCandidates: circuit-open candidates record SKIPPED, probe failures
// record FAILED and move on, fetches get one retry for TIMEOUT/HTTP_5XX,
// and the first success wins. Exhaustion returns a failure result with the
// last classified error.
func (g *Gateway) FetchWithFailover(ctx context.Context, syncRunID int64, sub *entity.Subscription, since time.Time) FetchResult {
	candidates, err := g.DiscoverCandidates(ctx, sub)
	if err != nil {
		kind, _, message := httpx.Classify(err)
		return FetchResult{OK: false, ErrorKind: kind, ErrorMessage: message}
	}
	if len(candidates) == 0 {
		return FetchResult{
			OK:           false,
			Candidate:    Candidate{SubscriptionID: sub.ID, Provider: "none", Priority: 999},
			ErrorKind:    entity.ErrKindNotFound,
			ErrorMessage: "no usable source candidates discovered",
		}
	}

	attempts := 0
	lastKind := entity.ErrKindUnknown
	lastMessage := "unknown error"
	for _, candidate := range candidates {
		if attempts >= g.cfg.MaxCandidates {
			break
		}
		provider, ok := g.providers[candidate.Provider]
		if !ok {
			continue
		}
		attempts++

		skip, err := g.health.ShouldSkipForCircuit(ctx, candidate)
		if err != nil {
			g.logger.Warn("circuit check failed", slog.Any("error", err))
		}
		if skip {
			g.recordAttempt(ctx, syncRunID, candidate, entity.FetchStatusSkipped, 0,
				entity.ErrKindCircuitOpen, "source circuit open, cooling down", 0)
			metrics.CircuitOpenSkipsTotal.WithLabelValues(candidate.Provider).Inc()
			continue
		}

		probe := provider.Probe(ctx, candidate)
		if !probe.OK {
			lastKind = firstNonEmpty(probe.ErrorKind, entity.ErrKindUnknown)
			lastMessage = firstNonEmpty(probe.ErrorMessage, "source probe failed")
			g.recordAttempt(ctx, syncRunID, candidate, entity.FetchStatusFailed,
				probe.LatencyMS, lastKind, lastMessage, probe.HTTPCode)
			continue
		}

		result := g.fetchWithRetry(ctx, provider, candidate, since)
		if result.OK {
			g.recordAttempt(ctx, syncRunID, candidate, entity.FetchStatusSuccess,
				result.LatencyMS, "", "", 0)
			return result
		}

		lastKind = firstNonEmpty(result.ErrorKind, entity.ErrKindUnknown)
		lastMessage = firstNonEmpty(result.ErrorMessage, "source fetch failed")
		g.recordAttempt(ctx, syncRunID, candidate, entity.FetchStatusFailed,
			result.LatencyMS, lastKind, lastMessage, 0)
	}

	return FetchResult{
		OK:           false,
		Candidate:    candidates[0],
		ErrorKind:    lastKind,
		ErrorMessage: lastMessage,
	}
}

// fetchWithRetry performs the provider fetch with exactly one retry for
// errors classified as TIMEOUT or HTTP_5XX.
func (g *Gateway) fetchWithRetry(ctx context.Context, provider Provider, candidate Candidate, since time.Time) FetchResult {
	started := time.Now()
	var articles []entity.RawArticle

	retryIf := func(err error) bool {
		kind, _, _ := httpx.Classify(err)
		return kind == entity.ErrKindTimeout || kind == entity.ErrKindHTTP5xx
	}
	err := retry.WithBackoff(ctx, retry.GatewayConfig(g.cfg.RetryBackoff, retryIf), func() error {
		fetched, fetchErr := provider.Fetch(ctx, candidate, since)
		if fetchErr != nil {
			return fetchErr
		}
		articles = fetched
		return nil
	})

	latencyMS := int(time.Since(started).Milliseconds())
	if err != nil {
		kind, _, message := httpx.Classify(err)
		return FetchResult{
			OK:           false,
			Candidate:    candidate,
			LatencyMS:    latencyMS,
			ErrorKind:    kind,
			ErrorMessage: message,
		}
	}
	return FetchResult{OK: true, Candidate: candidate, Articles: articles, LatencyMS: latencyMS}
}

func (g *Gateway) recordAttempt(ctx context.Context, syncRunID int64, candidate Candidate, status string, latencyMS int, errorKind, errorMessage string, httpCode int) {
	if err := g.health.RecordAttempt(ctx, syncRunID, candidate, status, latencyMS, errorKind, errorMessage, httpCode); err != nil {
		g.logger.Error("recording fetch attempt failed",
			slog.String("provider", candidate.Provider),
			slog.Any("error", err))
	}
	metrics.RecordFetchAttempt(candidate.Provider, status, errorKind, float64(latencyMS)/1000.0)
}

// upsertCandidate persists a discovered candidate row.
func (g *Gateway) upsertCandidate(ctx context.Context, candidate Candidate, now time.Time) error {
	discoveredAt := candidate.DiscoveredAt
	if discoveredAt.IsZero() {
		discoveredAt = now
	}
	return g.sourceRepo.Upsert(ctx, &entity.SubscriptionSource{
		SubscriptionID: candidate.SubscriptionID,
		Provider:       candidate.Provider,
		SourceURL:      candidate.URL,
		Priority:       candidate.Priority,
		Pinned:         candidate.Pinned,
		Active:         true,
		Confidence:     candidate.Confidence,
		DiscoveredAt:   discoveredAt,
		MetadataJSON:   candidate.MetadataJSON,
	})
}

// demoteLegacyManualSources unpins and deactivates manual rows carrying the
// legacy marker, so an old stand-alone source_url cannot resurrect itself.
func (g *Gateway) demoteLegacyManualSources(ctx context.Context, sub *entity.Subscription) error {
	rows, err := g.sourceRepo.ListByProvider(ctx, sub.ID, entity.ProviderManual)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if !strings.Contains(compactJSON(row.MetadataJSON), `"legacy":true`) {
			continue
		}
		row.Pinned = false
		row.Active = false
		if row.Priority < 95 {
			row.Priority = 95
		}
		if err := g.sourceRepo.Update(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// deactivateWeakDirectorySources disables stored directory-index rows whose
// recorded match score fell under the floor.
func (g *Gateway) deactivateWeakDirectorySources(ctx context.Context, sub *entity.Subscription) error {
	rows, err := g.sourceRepo.ListActiveByProvider(ctx, sub.ID, entity.ProviderDirectoryIndex)
	if err != nil {
		return err
	}
	for _, row := range rows {
		var metadata struct {
			Score int `json:"score"`
		}
		if err := json.Unmarshal([]byte(row.MetadataJSON), &metadata); err != nil {
			metadata.Score = 0
		}
		if metadata.Score >= DirectoryMinScore {
			continue
		}
		row.Active = false
		if err := g.sourceRepo.Update(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func compactJSON(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(raw, " ", ""), "\t", "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
