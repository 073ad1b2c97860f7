package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/adapter/persistence/sqlite"
	"github.com/v6582374-netizen/Cerebro/internal/infra/db"
	infradiscovery "github.com/v6582374-netizen/Cerebro/internal/infra/discovery"
	"github.com/v6582374-netizen/Cerebro/internal/infra/embedding"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	infrasource "github.com/v6582374-netizen/Cerebro/internal/infra/source"
	"github.com/v6582374-netizen/Cerebro/internal/infra/summarizer"
	"github.com/v6582374-netizen/Cerebro/internal/infra/vault"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/config"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/auth"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/coverage"
	discoveryUC "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/readstate"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/recommend"
	sourceUC "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
	syncUC "github.com/v6582374-netizen/Cerebro/internal/usecase/sync"
	"github.com/v6582374-netizen/Cerebro/internal/usecase/view"
)

// app is the composition root shared by all CLI commands. Resources created
// here are released by Close, including on error paths.
type app struct {
	settings config.Settings
	database *sql.DB
	store    *sqlite.Store

	syncSvc      *syncUC.Service
	viewSvc      *view.Service
	readSvc      *readstate.Service
	coverageSvc  *coverage.Service
	authSvc      *auth.Service
	healthSvc    *sourceUC.HealthService
	sessionVault *vault.Vault
}

// newApp wires the full object graph from the settings.
func newApp(settings config.Settings) (*app, error) {
	database, err := db.Open(settings.DBURL)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(database); err != nil {
		_ = database.Close()
		return nil, err
	}

	store := sqlite.NewStore(database)
	logger := slog.Default()

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
	discoveryProviders := []discoveryUC.Provider{
		infradiscovery.NewSignedChannelProvider(httpClient, ""),
		searchIndex,
	}
	orchestrator := discoveryUC.NewOrchestrator(discoveryProviders, sessionVault,
		settings.SessionProvider, store.Discovery, searchIndex, logger)
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

	embedClient := aiClient
	embedModel := settings.ResolvedEmbedModel()
	embedder := embedding.New(embedClient, embedModel, embedding.DefaultVectorSize, logger)
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

	return &app{
		settings:     settings,
		database:     database,
		store:        store,
		syncSvc:      syncSvc,
		viewSvc:      view.NewService(store.Articles),
		readSvc:      readstate.NewService(store.ReadStates),
		coverageSvc:  coverage.NewService(store.Subscriptions, store.SyncRuns, store.Discovery, store.Coverage, settings.CoverageSLATarget),
		authSvc:      auth.NewService(sessionVault, store.AuthSessions),
		healthSvc:    healthSvc,
		sessionVault: sessionVault,
	}, nil
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.database != nil {
		_ = a.database.Close()
	}
}

func (a *app) runAdd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)
	name := flags.String("name", "", "display name")
	wechatID := flags.String("id", "", "channel identifier")
	url := flags.String("url", "", "known feed URL (sets manual mode)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	sub := &entity.Subscription{
		Name:       *name,
		WechatID:   *wechatID,
		SourceURL:  *url,
		SourceMode: entity.SourceModeAuto,
	}
	if *url != "" {
		sub.SourceMode = entity.SourceModeManual
	}
	id, err := a.store.Subscriptions.Create(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Printf("added subscription #%d %s (%s)\n", id, sub.Name, sub.WechatID)
	return nil
}

func (a *app) runList(ctx context.Context) error {
	subs, err := a.store.Subscriptions.List(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("no subscriptions yet; use 'cerebro add'")
		return nil
	}
	for _, sub := range subs {
		line := fmt.Sprintf("#%d %s (%s) status=%s mode=%s", sub.ID, sub.Name, sub.WechatID, sub.SourceStatus, sub.SourceMode)
		if sub.LastError != "" {
			line += " last_error=" + sub.LastError
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) runSync(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("sync", flag.ContinueOnError)
	targetDate, err := parseDateFlag(flags, args)
	if err != nil {
		return err
	}

	run, err := a.syncSvc.Sync(ctx, targetDate, "cli")
	if err != nil {
		return err
	}
	fmt.Printf("sync %s: %d ok, %d failed, %d new articles\n",
		run.PublicID, run.SuccessCount, run.FailCount, run.NewCount)
	return nil
}

func (a *app) runView(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("view", flag.ContinueOnError)
	mode := flags.String("mode", a.settings.DefaultViewMode, "view mode: source, time or recommend")
	targetDate, err := parseDateFlag(flags, args)
	if err != nil {
		return err
	}

	items, err := a.viewSvc.ListDay(ctx, targetDate, *mode)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("no articles for %s\n", timeutil.DayString(targetDate))
		return nil
	}
	for _, item := range items {
		marker := " "
		if item.IsRead {
			marker = "✓"
		}
		score := ""
		if item.Score != nil {
			score = fmt.Sprintf(" [%.2f]", *item.Score)
		}
		fmt.Printf("%3d %s %s | %s%s\n      %s\n      %s\n",
			item.DayID, marker, item.PublishedAt.In(time.Local).Format("15:04"),
			item.SourceName, score, item.Title, item.Summary)
	}
	return nil
}

func (a *app) runRead(ctx context.Context, args []string, markRead bool) error {
	flags := flag.NewFlagSet("read", flag.ContinueOnError)
	rawIDs := flags.String("ids", "", "comma-separated day-ids")
	targetDate, err := parseDateFlag(flags, args)
	if err != nil {
		return err
	}
	dayIDs, err := parseIDList(*rawIDs)
	if err != nil {
		return err
	}

	resolved, err := a.viewSvc.ResolveDayIDs(ctx, targetDate, dayIDs)
	if err != nil {
		return err
	}
	for _, dayID := range dayIDs {
		articleID, ok := resolved[dayID]
		if !ok {
			fmt.Printf("no article for day-id %d on %s\n", dayID, timeutil.DayString(targetDate))
			continue
		}
		if err := a.readSvc.Mark(ctx, articleID, markRead); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runCoverage(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("coverage", flag.ContinueOnError)
	targetDate, err := parseDateFlag(flags, args)
	if err != nil {
		return err
	}

	report, err := a.coverageSvc.Compute(ctx, targetDate)
	if err != nil {
		return err
	}
	fmt.Printf("coverage %s: %.0f%% (%d ok, %d delayed, %d failed of %d)\n",
		report.Date, report.CoverageRatio*100,
		report.SuccessSubs, report.DelayedSubs, report.FailSubs, report.TotalSubs)
	if report.SLATarget > 0 && !report.MeetsSLA() {
		fmt.Printf("below SLA target %.0f%%\n", report.SLATarget*100)
	}
	for kind, count := range report.ByErrorKind {
		fmt.Printf("  %s: %d\n", kind, count)
	}
	for _, detail := range report.Details {
		if detail.Status == entity.DiscoveryStatusSuccess {
			continue
		}
		fmt.Printf("  %s (%s): %s %s\n", detail.Name, detail.WechatID, detail.Status, detail.ErrorKind)
	}
	return nil
}

func (a *app) runStatus(ctx context.Context) error {
	subs, err := a.store.Subscriptions.List(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		healthMap, err := a.healthSvc.LoadHealthMap(ctx, sub.ID)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s status=%s discovery=%s\n", sub.ID, sub.Name, sub.SourceStatus, sub.DiscoveryStatus)
		for key, health := range healthMap {
			fmt.Printf("    %s state=%s score=%.0f fails=%d\n",
				key, health.State, health.Score, health.ConsecutiveFailures)
		}
	}
	return nil
}

func (a *app) runAuthSet(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("auth-set", flag.ContinueOnError)
	expiresHours := flags.Int("expires-hours", 0, "session lifetime in hours (0 = unknown)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Paste the session token (cookie string or JSON with a cookie field), then EOF:")
	reader := bufio.NewReader(os.Stdin)
	var builder strings.Builder
	for {
		line, err := reader.ReadString('\n')
		builder.WriteString(line)
		if err != nil {
			break
		}
	}
	token := infradiscovery.ParseTokenFromInput(builder.String())
	if token == "" {
		return fmt.Errorf("auth-set: empty token")
	}

	var expiresAt *time.Time
	if *expiresHours > 0 {
		expiry := time.Now().UTC().Add(time.Duration(*expiresHours) * time.Hour)
		expiresAt = &expiry
	}
	if err := a.authSvc.SetSession(ctx, a.settings.SessionProvider, token, expiresAt); err != nil {
		return err
	}
	fmt.Printf("session stored for %s\n", a.settings.SessionProvider)
	return nil
}

func (a *app) runAuthStatus(ctx context.Context) error {
	state, err := a.authSvc.SessionState(ctx, a.settings.SessionProvider)
	if err != nil {
		return err
	}
	fmt.Printf("%s session: %s\n", a.settings.SessionProvider, state)
	return nil
}

func (a *app) runAuthClear(ctx context.Context) error {
	if err := a.authSvc.ClearSession(ctx, a.settings.SessionProvider); err != nil {
		return err
	}
	fmt.Printf("session cleared for %s\n", a.settings.SessionProvider)
	return nil
}
