package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/httpx"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

const (
	// historyBacktrackLimit bounds how many prior refs feed the backtrack.
	historyBacktrackLimit = 30

	// historyBacktrackChannel tags refs recovered through backtracking.
	historyBacktrackChannel = "history_backtrack"

	// historyBacktrackMaxConfidence caps recovered refs.
	historyBacktrackMaxConfidence = 0.55
)

// Orchestrator chains discovery providers for one subscription and day.
type Orchestrator struct {
	providers       []Provider
	vault           SecretGetter
	sessionProvider string
	discoveryRepo   repository.DiscoveryRepository
	querySearcher   QuerySearcher
	logger          *slog.Logger

	// tokenMu guards the per-provider token cache; the vault is consulted at
	// most once per provider name for the orchestrator's lifetime.
	tokenMu    sync.Mutex
	tokenCache map[string]string
}

// NewOrchestrator creates an Orchestrator. querySearcher may be nil to
// disable history backtracking.
func NewOrchestrator(providers []Provider, vault SecretGetter, sessionProvider string, discoveryRepo repository.DiscoveryRepository, querySearcher QuerySearcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		providers:       providers,
		vault:           vault,
		sessionProvider: sessionProvider,
		discoveryRepo:   discoveryRepo,
		querySearcher:   querySearcher,
		logger:          logger,
		tokenCache:      make(map[string]string),
	}
}

// sessionToken returns the vault secret for a provider name, consulting the
// vault only on the first request.
func (o *Orchestrator) sessionToken(providerName string) string {
	o.tokenMu.Lock()
	defer o.tokenMu.Unlock()
	if token, ok := o.tokenCache[providerName]; ok {
		return token
	}
	token, err := o.vault.Get(providerName)
	if err != nil {
		token = ""
	}
	o.tokenCache[providerName] = token
	return token
}

// Discover walks the providers in order, stops at the first non-empty result,
// falls back to history backtracking, dedups by URL keeping the highest
// confidence, persists the refs, and returns them ranked by confidence.
func (o *Orchestrator) Discover(ctx context.Context, sub *entity.Subscription, targetDate time.Time, since time.Time) Result {
	started := time.Now()
	lastKind := entity.ErrKindSearchEmpty
	lastMessage := "no article links discovered"
	var refs []Ref
	notes := make([]string, 0, len(o.providers)+1)

	for _, provider := range o.providers {
		found, err := o.searchWithProvider(ctx, provider, sub, targetDate)
		if err != nil {
			kind, _, message := httpx.Classify(err)
			if kind == entity.ErrKindUnknown {
				kind = entity.ErrKindSearchEmpty
			}
			lastKind, lastMessage = kind, message
			notes = append(notes, fmt.Sprintf("%s=error(%s)", provider.Name(), kind))
			continue
		}
		filtered := found[:0:0]
		for _, ref := range found {
			if ref.URL != "" {
				filtered = append(filtered, ref)
			}
		}
		notes = append(notes, fmt.Sprintf("%s=%d", provider.Name(), len(filtered)))
		if len(filtered) > 0 {
			refs = filtered
			break
		}
	}

	if len(refs) == 0 {
		history := o.historyBacktrack(ctx, sub, targetDate)
		notes = append(notes, fmt.Sprintf("%s=%d", historyBacktrackChannel, len(history)))
		refs = history
	}

	latencyMS := int(time.Since(started).Milliseconds())
	if len(refs) == 0 {
		message := lastMessage
		if len(notes) > 0 {
			message = fmt.Sprintf("%s (%s)", lastMessage, strings.Join(notes, ", "))
		}
		return Result{
			OK:           false,
			ErrorKind:    lastKind,
			ErrorMessage: message,
			LatencyMS:    latencyMS,
			Status:       entity.DiscoveryStatusFailed,
		}
	}

	dedup := make(map[string]Ref, len(refs))
	for _, ref := range refs {
		previous, seen := dedup[ref.URL]
		if !seen || ref.Confidence > previous.Confidence {
			dedup[ref.URL] = ref
		}
		o.upsertRef(ctx, sub, ref)
	}

	ranked := make([]Ref, 0, len(dedup))
	for _, ref := range dedup {
		ranked = append(ranked, ref)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })

	return Result{
		OK:          true,
		Refs:        ranked,
		ChannelUsed: ranked[0].Channel,
		LatencyMS:   latencyMS,
		Status:      entity.DiscoveryStatusSuccess,
	}
}

// searchWithProvider feeds the signed-in channel its vault token; absence is
// AUTH_EXPIRED. The search-index provider additionally receives the
// identifier as an extra keyword when it is not a generated placeholder.
func (o *Orchestrator) searchWithProvider(ctx context.Context, provider Provider, sub *entity.Subscription, targetDate time.Time) ([]Ref, error) {
	req := SearchRequest{
		SubscriptionName: sub.Name,
		WechatID:         sub.WechatID,
		Date:             targetDate,
	}
	if provider.Name() == entity.ProviderSignedChannel {
		token := o.sessionToken(o.sessionProvider)
		if token == "" {
			return nil, entity.ErrAuthExpired
		}
		req.SessionToken = token
	}
	if provider.Name() == entity.ProviderSearchIndex {
		wechatID := strings.TrimSpace(sub.WechatID)
		if wechatID != "" && !strings.HasPrefix(wechatID, "auto_") {
			req.ExtraKeywords = append(req.ExtraKeywords, wechatID)
		}
	}
	return provider.Search(ctx, req)
}

// historyBacktrack pulls the platform channel identifiers out of prior refs
// and requeries the search index with constructed queries.
func (o *Orchestrator) historyBacktrack(ctx context.Context, sub *entity.Subscription, targetDate time.Time) []Ref {
	if o.querySearcher == nil {
		return nil
	}
	rows, err := o.discoveryRepo.ListRecentRefs(ctx, sub.ID, historyBacktrackLimit)
	if err != nil {
		o.logger.Warn("history backtrack listing failed", slog.Any("error", err))
		return nil
	}

	bizSet := make(map[string]struct{})
	for _, row := range rows {
		parsed, err := url.Parse(row.URL)
		if err != nil {
			continue
		}
		if biz := strings.TrimSpace(parsed.Query().Get("__biz")); biz != "" {
			bizSet[biz] = struct{}{}
		}
	}
	if len(bizSet) == 0 {
		return nil
	}
	bizValues := make([]string, 0, len(bizSet))
	for biz := range bizSet {
		bizValues = append(bizValues, biz)
	}
	sort.Strings(bizValues)

	refs := make([]Ref, 0, len(bizValues)*3)
	day := targetDate.Format("2006-01-02")
	for _, biz := range bizValues {
		query := fmt.Sprintf("site:mp.weixin.qq.com __biz=%s %s", biz, day)
		found, err := o.querySearcher.SearchByQuery(ctx, query, 3)
		if err != nil {
			continue
		}
		refs = append(refs, found...)
	}
	for i := range refs {
		refs[i].Channel = historyBacktrackChannel
		if refs[i].Confidence > historyBacktrackMaxConfidence {
			refs[i].Confidence = historyBacktrackMaxConfidence
		}
	}
	return refs
}

func (o *Orchestrator) upsertRef(ctx context.Context, sub *entity.Subscription, ref Ref) {
	err := o.discoveryRepo.UpsertRef(ctx, &entity.ArticleRef{
		SubscriptionID:  sub.ID,
		URL:             ref.URL,
		TitleHint:       ref.TitleHint,
		PublishedAtHint: ref.PublishedAtHint,
		Channel:         ref.Channel,
		Confidence:      ref.Confidence,
	})
	if err != nil {
		o.logger.Warn("article ref upsert failed",
			slog.String("url", ref.URL),
			slog.Any("error", err))
	}
}
