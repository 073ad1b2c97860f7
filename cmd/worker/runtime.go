package main

import (
	"database/sql"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/v6582374-netizen/Cerebro/internal/infra/adapter/persistence/sqlite"
	"github.com/v6582374-netizen/Cerebro/internal/infra/db"
	infradiscovery "github.com/v6582374-netizen/Cerebro/internal/infra/discovery"
	"github.com/v6582374-netizen/Cerebro/internal/infra/embedding"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	infrasource "github.com/v6582374-netizen/Cerebro/internal/infra/source"
	"github.com/v6582374-netizen/Cerebro/internal/infra/summarizer"
	"github.com/v6582374-netizen/Cerebro/internal/infra/vault"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/config"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/coverage"
	discoveryUC "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/recommend"
	sourceUC "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
	syncUC "github.com/v6582374-netizen/Cerebro/internal/usecase/sync"
)

// runtime is the worker's object graph. It owns the database handle and
// releases it on Close.
type runtime struct {
	database    *sql.DB
	syncSvc     *syncUC.Service
	coverageSvc *coverage.Service
}

func newRuntime(settings config.Settings, logger *slog.Logger) (*runtime, error) {
	database, err := db.Open(settings.DBURL)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(database); err != nil {
		_ = database.Close()
		return nil, err
	}

	store := sqlite.NewStore(database)
	httpClient := httpx.NewClient(time.Duration(settings.HTTPTimeoutSeconds) * time.Second)
	articleClient := httpx.NewClient(time.Duration(settings.ArticleFetchTimeoutSeconds) * time.Second)

	feedFetcher := infrasource.NewFeedFetcher(httpClient, settings.MidnightShiftDays)
	directory := infrasource.NewDirectoryIndexProvider(settings.Wechat2RSSIndexURL, httpClient, feedFetcher, 0)
	providers := []sourceUC.Provider{
		infrasource.NewManualProvider(store.Sources, feedFetcher),
		infrasource.NewTemplateMirrorProvider(settings.SourceTemplates, feedFetcher),
		directory,
	}

	healthSvc := sourceUC.NewHealthService(store.Health, store.Attempts, sourceUC.HealthConfig{
		FailThreshold: settings.SourceCircuitFailThreshold,
		Cooldown:      time.Duration(settings.SourceCooldownMinutes) * time.Minute,
		Weights:       sourceUC.DefaultHealthWeights(),
	})
	gateway := sourceUC.NewGateway(providers, sourceUC.NewRouter(), healthSvc, store.Sources, sourceUC.GatewayConfig{
		MaxCandidates: settings.SourceMaxCandidates,
		RetryBackoff:  time.Duration(settings.SourceRetryBackoffMS) * time.Millisecond,
	}, logger)
	resolver := sourceUC.NewResolver(settings.SourceTemplates, feedFetcher, directory)

	sessionVault := vault.New(settings.SessionBackend, "cerebro", "")
	searchIndex := infradiscovery.NewSearchIndexProvider(httpClient)
	orchestrator := discoveryUC.NewOrchestrator(
		[]discoveryUC.Provider{
			infradiscovery.NewSignedChannelProvider(httpClient, ""),
			searchIndex,
		},
		sessionVault, settings.SessionProvider, store.Discovery, searchIndex, logger)
	materializer := discoveryUC.NewMaterializer(articleClient, settings.MidnightShiftDays)

	var aiClient *openai.Client
	if key := settings.ResolvedAPIKey(); key != "" {
		clientConfig := openai.DefaultConfig(key)
		if baseURL := settings.ResolvedBaseURL(); baseURL != "" {
			clientConfig.BaseURL = baseURL
		}
		aiClient = openai.NewClientWithConfig(clientConfig)
	}
	summarizerSvc := summarizer.New(aiClient, articleClient, summarizer.Config{
		ChatModel:       settings.ResolvedChatModel(),
		SourceCharLimit: settings.SummarySourceCharLimit,
	}, logger)
	embedder := embedding.New(aiClient, settings.ResolvedEmbedModel(), embedding.DefaultVectorSize, logger)
	recommender := recommend.NewService(embedder, store.Articles, store.Summaries,
		store.Embeddings, store.Recommendations, recommend.DefaultWeights())

	syncSvc := syncUC.NewService(
		store.Subscriptions, store.Articles, store.Summaries, store.SyncRuns, store.Discovery,
		gateway, resolver, feedFetcher, orchestrator, materializer,
		summarizerSvc, recommender,
		syncUC.Config{
			Overlap:            time.Duration(settings.SyncOverlapSeconds) * time.Second,
			IncrementalEnabled: settings.IncrementalSyncEnabled,
			MaxConcurrency:     settings.MaxConcurrency,
			DiscoveryV2Enabled: settings.DiscoveryV2Enabled,
		}, logger)

	coverageSvc := coverage.NewService(store.Subscriptions, store.SyncRuns,
		store.Discovery, store.Coverage, settings.CoverageSLATarget)

	return &runtime{database: database, syncSvc: syncSvc, coverageSvc: coverageSvc}, nil
}

// Close releases the database handle.
func (r *runtime) Close() {
	if r.database != nil {
		_ = r.database.Close()
	}
}
