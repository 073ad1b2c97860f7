// Package sync orchestrates one per-day incremental acquisition run across
// all subscriptions: fetch through the source gateway (or the legacy
// resolver, or the v2 discovery path), upsert articles, refresh weak
// summaries, and recompute recommendation scores.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/summarizer"
	"github.com/v6582374-netizen/Cerebro/internal/observability/metrics"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
	discoveryUC "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
	sourceUC "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
)

// Gateway is the failover fetch entry point.
type Gateway interface {
	FetchWithFailover(ctx context.Context, syncRunID int64, sub *entity.Subscription, since time.Time) sourceUC.FetchResult
}

// Resolver is the legacy v1 single-URL resolution.
type Resolver interface {
	Resolve(ctx context.Context, sub *entity.Subscription) sourceUC.ResolveResult
}

// FeedFetcher downloads one resolved feed URL (v1 path).
type FeedFetcher interface {
	Fetch(ctx context.Context, sourceURL string, since time.Time) ([]entity.RawArticle, error)
}

// Summarizer produces article summaries; it never fails.
type Summarizer interface {
	Summarize(ctx context.Context, article entity.RawArticle) summarizer.Result
}

// Recommender maintains embeddings and recomputes day scores.
type Recommender interface {
	EnsureArticleEmbedding(ctx context.Context, articleID int64, text string) ([]float64, error)
	RecomputeScoresForDate(ctx context.Context, targetDate time.Time) error
}

// Discoverer is the v2 per-article link discovery.
type Discoverer interface {
	Discover(ctx context.Context, sub *entity.Subscription, targetDate, since time.Time) discoveryUC.Result
}

// Materializer turns discovered refs into full articles.
type Materializer interface {
	Materialize(ctx context.Context, refs []discoveryUC.Ref, since time.Time) []entity.RawArticle
}

// Config tunes one engine instance. The v2 discovery path and the gateway
// are mutually exclusive acquisition paths selected by DiscoveryV2Enabled.
type Config struct {
	Overlap            time.Duration
	IncrementalEnabled bool
	MaxConcurrency     int
	DiscoveryV2Enabled bool
}

// DefaultConfig returns the default engine parameters.
func DefaultConfig() Config {
	return Config{
		Overlap:            120 * time.Second,
		IncrementalEnabled: true,
		MaxConcurrency:     5,
	}
}

// Service is the sync engine.
type Service struct {
	subscriptionRepo repository.SubscriptionRepository
	articleRepo      repository.ArticleRepository
	summaryRepo      repository.SummaryRepository
	syncRunRepo      repository.SyncRunRepository
	discoveryRepo    repository.DiscoveryRepository

	gateway      Gateway
	resolver     Resolver
	feedFetcher  FeedFetcher
	discoverer   Discoverer
	materializer Materializer

	summarizer  Summarizer
	recommender Recommender

	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates the sync engine. gateway may be nil, in which case the
// legacy resolver path runs; with DiscoveryV2Enabled the discoverer runs
// instead of either.
func NewService(
	subscriptionRepo repository.SubscriptionRepository,
	articleRepo repository.ArticleRepository,
	summaryRepo repository.SummaryRepository,
	syncRunRepo repository.SyncRunRepository,
	discoveryRepo repository.DiscoveryRepository,
	gateway Gateway,
	resolver Resolver,
	feedFetcher FeedFetcher,
	discoverer Discoverer,
	materializer Materializer,
	summarizerSvc Summarizer,
	recommender Recommender,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		subscriptionRepo: subscriptionRepo,
		articleRepo:      articleRepo,
		summaryRepo:      summaryRepo,
		syncRunRepo:      syncRunRepo,
		discoveryRepo:    discoveryRepo,
		gateway:          gateway,
		resolver:         resolver,
		feedFetcher:      feedFetcher,
		discoverer:       discoverer,
		materializer:     materializer,
		summarizer:       summarizerSvc,
		recommender:      recommender,
		cfg:              cfg,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// subOutcome is one subscription's result, applied in id order afterwards.
type subOutcome struct {
	sub          *entity.Subscription
	status       string
	newCount     int
	errorMessage string
	insertedIDs  []int64
	discovery    *entity.DiscoveryRun
	processed    bool
}

// Sync runs one per-day acquisition pass and returns the closed SyncRun.
// Cancellation between subscriptions leaves finished_at NULL and tags the
// trigger.
func (s *Service) Sync(ctx context.Context, targetDate time.Time, trigger string) (*entity.SyncRun, error) {
	started := s.now()
	run := &entity.SyncRun{
		PublicID:  uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
	}
	if _, err := s.syncRunRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("Sync: %w", err)
	}
	metrics.SyncRunsTotal.WithLabelValues(trigger).Inc()

	logger := s.logger.With(slog.String("run_id", run.PublicID), slog.String("trigger", trigger))
	dayStart, _ := timeutil.LocalDayBounds(targetDate)

	subscriptions, err := s.subscriptionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Sync: %w", err)
	}

	outcomes := make([]*subOutcome, len(subscriptions))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.MaxConcurrency)

	cancelled := false
	for i, sub := range subscriptions {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		i, sub := i, sub
		group.Go(func() error {
			outcome := s.syncSubscription(groupCtx, run, sub, targetDate, dayStart)
			outcomes[i] = outcome
			return nil
		})
	}
	_ = group.Wait()
	if ctx.Err() != nil {
		cancelled = true
	}

	insertedIDs := make([]int64, 0, 32)
	for _, outcome := range outcomes {
		if outcome == nil || !outcome.processed {
			continue
		}
		if outcome.discovery != nil {
			outcome.discovery.SyncRunID = run.ID
			if err := s.discoveryRepo.InsertRun(ctx, outcome.discovery); err != nil {
				logger.Error("recording discovery run failed", slog.Any("error", err))
			}
			metrics.DiscoveryRunsTotal.WithLabelValues(outcome.discovery.Channel, outcome.discovery.Status).Inc()
		}

		item := &entity.SyncRunItem{
			SyncRunID:      run.ID,
			SubscriptionID: outcome.sub.ID,
			Status:         outcome.status,
			NewCount:       outcome.newCount,
			ErrorMessage:   outcome.errorMessage,
		}
		if err := s.syncRunRepo.InsertItem(ctx, item); err != nil {
			logger.Error("recording sync item failed", slog.Any("error", err))
		}
		metrics.SyncSubscriptionsTotal.WithLabelValues(outcome.status).Inc()

		switch outcome.status {
		case entity.SyncItemStatusSuccess:
			run.SuccessCount++
		default:
			run.FailCount++
		}
		run.NewCount += outcome.newCount
		insertedIDs = append(insertedIDs, outcome.insertedIDs...)

		if err := s.subscriptionRepo.Update(ctx, outcome.sub); err != nil {
			logger.Error("updating subscription failed",
				slog.Int64("subscription_id", outcome.sub.ID),
				slog.Any("error", err))
		}
	}

	if cancelled {
		run.Trigger = trigger + ":cancelled"
		if err := s.syncRunRepo.Update(ctx, run); err != nil {
			logger.Error("closing cancelled run failed", slog.Any("error", err))
		}
		logger.Warn("sync cancelled between subscriptions",
			slog.Int("success", run.SuccessCount),
			slog.Int("fail", run.FailCount))
		return run, ctx.Err()
	}

	s.refreshLowQualitySummaries(ctx, insertedIDs, logger)

	if err := s.recommender.RecomputeScoresForDate(ctx, targetDate); err != nil {
		logger.Error("score recompute failed", slog.Any("error", err))
	}

	finished := s.now()
	run.FinishedAt = &finished
	if err := s.syncRunRepo.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("Sync: close run: %w", err)
	}

	metrics.SyncDuration.Observe(finished.Sub(started).Seconds())
	logger.Info("sync finished",
		slog.Int("subscriptions", len(subscriptions)),
		slog.Int("success", run.SuccessCount),
		slog.Int("fail", run.FailCount),
		slog.Int("new_articles", run.NewCount),
		slog.Duration("duration", finished.Sub(started)))
	return run, nil
}

// sinceFor computes the incremental lower bound for one subscription:
// the day start, advanced to the last successful run minus the overlap when
// incremental sync is enabled.
func (s *Service) sinceFor(ctx context.Context, sub *entity.Subscription, dayStart time.Time) time.Time {
	if !s.cfg.IncrementalEnabled {
		return dayStart
	}
	lastFinished, err := s.syncRunRepo.LastSuccessFinishedAt(ctx, sub.ID)
	if err != nil || lastFinished == nil {
		return dayStart
	}
	since := lastFinished.Add(-s.cfg.Overlap)
	if since.Before(dayStart) {
		return dayStart
	}
	return since
}

func (s *Service) syncSubscription(ctx context.Context, run *entity.SyncRun, sub *entity.Subscription, targetDate, dayStart time.Time) *subOutcome {
	outcome := &subOutcome{sub: sub, processed: true}
	since := s.sinceFor(ctx, sub, dayStart)

	switch {
	case s.cfg.DiscoveryV2Enabled && s.discoverer != nil:
		s.syncViaDiscovery(ctx, sub, targetDate, since, outcome)
	case s.gateway != nil:
		s.syncViaGateway(ctx, run.ID, sub, since, outcome)
	default:
		s.syncViaResolver(ctx, sub, since, outcome)
	}
	return outcome
}

// syncViaGateway is the failover acquisition path.
func (s *Service) syncViaGateway(ctx context.Context, runID int64, sub *entity.Subscription, since time.Time, outcome *subOutcome) {
	result := s.gateway.FetchWithFailover(ctx, runID, sub, since)
	if !result.OK {
		sub.SourceStatus = entity.SourceStatusMatchFailed
		sub.LastError = fmt.Sprintf("%s: %s", result.ErrorKind, result.ErrorMessage)
		outcome.status = entity.SyncItemStatusFailed
		outcome.errorMessage = sub.LastError
		return
	}

	sub.SourceURL = result.Candidate.URL
	sub.PreferredProvider = result.Candidate.Provider
	sub.SourceStatus = entity.SourceStatusActive
	sub.LastError = ""

	s.persistArticles(ctx, sub, result.Articles, outcome)
	outcome.status = entity.SyncItemStatusSuccess
}

// syncViaResolver is the legacy v1 path: resolve one URL, then fetch it.
func (s *Service) syncViaResolver(ctx context.Context, sub *entity.Subscription, since time.Time, outcome *subOutcome) {
	resolved := s.resolver.Resolve(ctx, sub)
	if !resolved.OK || resolved.SourceURL == "" {
		sub.SourceStatus = entity.SourceStatusMatchFailed
		sub.LastError = resolved.Error
		if sub.LastError == "" {
			sub.LastError = "no usable public source matched"
		}
		outcome.status = entity.SyncItemStatusFailed
		outcome.errorMessage = sub.LastError
		return
	}

	sub.SourceURL = resolved.SourceURL
	sub.SourceStatus = entity.SourceStatusActive
	sub.LastError = ""

	articles, err := s.feedFetcher.Fetch(ctx, resolved.SourceURL, since)
	if err != nil {
		sub.LastError = err.Error()
		outcome.status = entity.SyncItemStatusFailed
		outcome.errorMessage = err.Error()
		return
	}

	s.persistArticles(ctx, sub, articles, outcome)
	outcome.status = entity.SyncItemStatusSuccess
}

// syncViaDiscovery is the v2 path: discover per-article links, then
// materialize them. A failed discovery with cached same-day articles counts
// as DELAYED rather than FAILED.
func (s *Service) syncViaDiscovery(ctx context.Context, sub *entity.Subscription, targetDate, since time.Time, outcome *subOutcome) {
	result := s.discoverer.Discover(ctx, sub, targetDate, since)

	discoveryRow := &entity.DiscoveryRun{
		SubscriptionID: sub.ID,
		Channel:        result.ChannelUsed,
		Status:         result.Status,
		RefCount:       len(result.Refs),
		ErrorKind:      result.ErrorKind,
		LatencyMS:      result.LatencyMS,
	}
	outcome.discovery = discoveryRow

	if !result.OK {
		dayStart, dayEnd := timeutil.LocalDayBounds(targetDate)
		cached, err := s.articleRepo.CountWindowBySubscription(ctx, sub.ID, dayStart, dayEnd)
		if err == nil && cached > 0 {
			discoveryRow.Status = entity.DiscoveryStatusDelayed
			sub.DiscoveryStatus = entity.DiscoveryStatusDelayed
			outcome.status = entity.SyncItemStatusSuccess
			return
		}
		sub.DiscoveryStatus = entity.DiscoveryStatusFailed
		sub.LastError = fmt.Sprintf("%s: %s", result.ErrorKind, result.ErrorMessage)
		outcome.status = entity.SyncItemStatusFailed
		outcome.errorMessage = sub.LastError
		return
	}

	sub.DiscoveryStatus = entity.DiscoveryStatusSuccess
	sub.LastError = ""

	articles := s.materializer.Materialize(ctx, result.Refs, since)
	s.persistArticles(ctx, sub, articles, outcome)
	outcome.status = entity.SyncItemStatusSuccess
}

// persistArticles applies the upsert rules and fills the outcome counters.
func (s *Service) persistArticles(ctx context.Context, sub *entity.Subscription, articles []entity.RawArticle, outcome *subOutcome) {
	for _, raw := range articles {
		inserted, articleID, err := s.upsertArticle(ctx, sub, raw)
		if err != nil {
			s.logger.Error("article upsert failed",
				slog.Int64("subscription_id", sub.ID),
				slog.String("external_id", raw.ExternalID),
				slog.Any("error", err))
			continue
		}
		if inserted {
			outcome.newCount++
			outcome.insertedIDs = append(outcome.insertedIDs, articleID)
			metrics.SyncArticlesInsertedTotal.Inc()
		}
	}
}

// upsertArticle creates the article once per (subscription, external_id).
// Later observations only refresh published_at, the excerpt and the raw
// hash; title and url are immutable. New articles get their summary and
// embedding immediately.
func (s *Service) upsertArticle(ctx context.Context, sub *entity.Subscription, raw entity.RawArticle) (bool, int64, error) {
	existing, err := s.articleRepo.GetByExternalID(ctx, sub.ID, raw.ExternalID)
	if err == nil {
		changed := false
		publishedAt := existing.PublishedAt
		excerpt := existing.ContentExcerpt
		rawHash := existing.RawHash
		if !raw.PublishedAt.IsZero() && !raw.PublishedAt.Equal(existing.PublishedAt) {
			publishedAt = raw.PublishedAt
			changed = true
		}
		if raw.ContentExcerpt != "" && raw.ContentExcerpt != existing.ContentExcerpt {
			excerpt = raw.ContentExcerpt
			changed = true
		}
		if raw.RawHash != "" && raw.RawHash != existing.RawHash {
			rawHash = raw.RawHash
			changed = true
		}
		if changed {
			if err := s.articleRepo.UpdateMutable(ctx, existing.ID, publishedAt, excerpt, rawHash); err != nil {
				return false, 0, err
			}
		}
		return false, existing.ID, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return false, 0, err
	}

	article := &entity.Article{
		SubscriptionID: sub.ID,
		ExternalID:     raw.ExternalID,
		Title:          raw.Title,
		URL:            raw.URL,
		PublishedAt:    raw.PublishedAt,
		FetchedAt:      s.now(),
		ContentExcerpt: raw.ContentExcerpt,
		RawHash:        raw.RawHash,
	}
	articleID, err := s.articleRepo.Insert(ctx, article)
	if err != nil {
		return false, 0, err
	}

	summary := s.summarizer.Summarize(ctx, raw)
	if err := s.summaryRepo.Upsert(ctx, &entity.ArticleSummary{
		ArticleID:   articleID,
		SummaryText: summary.SummaryText,
		Model:       summary.Model,
	}); err != nil {
		return true, articleID, err
	}

	embeddingText := raw.Title + "\n" + summary.SummaryText + "\n" + raw.ContentExcerpt
	if _, err := s.recommender.EnsureArticleEmbedding(ctx, articleID, embeddingText); err != nil {
		s.logger.Warn("embedding failed for new article",
			slog.Int64("article_id", articleID),
			slog.Any("error", err))
	}
	return true, articleID, nil
}
