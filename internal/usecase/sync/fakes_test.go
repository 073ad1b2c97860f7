package sync

import (
	"context"
	"sync"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/infra/summarizer"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
	discoveryUC "github.com/v6582374-netizen/Cerebro/internal/usecase/discovery"
	sourceUC "github.com/v6582374-netizen/Cerebro/internal/usecase/source"
)

type memStore struct {
	mu sync.Mutex

	subs        []*entity.Subscription
	articles    []*entity.Article
	summaries   map[int64]*entity.ArticleSummary
	runs        []*entity.SyncRun
	items       []*entity.SyncRunItem
	discoveries []*entity.DiscoveryRun
	refs        []*entity.ArticleRef
	nextArticle int64
	nextRun     int64
}

func newMemStore(subs ...*entity.Subscription) *memStore {
	return &memStore{subs: subs, summaries: map[int64]*entity.ArticleSummary{}}
}

// --- SubscriptionRepository

func (m *memStore) Create(_ context.Context, sub *entity.Subscription) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.ID = int64(len(m.subs) + 1)
	m.subs = append(m.subs, sub)
	return sub.ID, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*entity.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memStore) GetByWechatID(_ context.Context, wechatID string) (*entity.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.WechatID == wechatID {
			return sub, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memStore) List(context.Context) ([]*entity.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.Subscription(nil), m.subs...), nil
}

func (m *memStore) Update(context.Context, *entity.Subscription) error { return nil }
func (m *memStore) Delete(context.Context, int64) error                { return nil }

// --- ArticleRepository

type memArticles struct{ store *memStore }

func (a memArticles) GetByID(_ context.Context, id int64) (*entity.Article, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	for _, article := range a.store.articles {
		if article.ID == id {
			clone := *article
			return &clone, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (a memArticles) GetByExternalID(_ context.Context, subID int64, externalID string) (*entity.Article, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	for _, article := range a.store.articles {
		if article.SubscriptionID == subID && article.ExternalID == externalID {
			clone := *article
			return &clone, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (a memArticles) Insert(_ context.Context, article *entity.Article) (int64, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.nextArticle++
	article.ID = a.store.nextArticle
	clone := *article
	a.store.articles = append(a.store.articles, &clone)
	return article.ID, nil
}

func (a memArticles) UpdateMutable(_ context.Context, id int64, publishedAt time.Time, excerpt, rawHash string) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	for _, article := range a.store.articles {
		if article.ID == id {
			article.PublishedAt = publishedAt
			article.ContentExcerpt = excerpt
			article.RawHash = rawHash
			return nil
		}
	}
	return entity.ErrNotFound
}

func (a memArticles) ListWindow(_ context.Context, start, end time.Time) ([]*entity.Article, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	result := make([]*entity.Article, 0, len(a.store.articles))
	for _, article := range a.store.articles {
		if !article.PublishedAt.Before(start) && article.PublishedAt.Before(end) {
			clone := *article
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (a memArticles) ListWindowWithMeta(context.Context, time.Time, time.Time) ([]*repository.ArticleWithMeta, error) {
	return nil, nil
}

func (a memArticles) CountWindowBySubscription(_ context.Context, subID int64, start, end time.Time) (int, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	count := 0
	for _, article := range a.store.articles {
		if article.SubscriptionID == subID && !article.PublishedAt.Before(start) && article.PublishedAt.Before(end) {
			count++
		}
	}
	return count, nil
}

// --- SummaryRepository

type memSummaries struct{ store *memStore }

func (s memSummaries) Get(_ context.Context, articleID int64) (*entity.ArticleSummary, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	summary, ok := s.store.summaries[articleID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	clone := *summary
	return &clone, nil
}

func (s memSummaries) Upsert(_ context.Context, summary *entity.ArticleSummary) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	clone := *summary
	s.store.summaries[summary.ArticleID] = &clone
	return nil
}

// --- SyncRunRepository

type memRuns struct{ store *memStore }

func (r memRuns) Create(_ context.Context, run *entity.SyncRun) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextRun++
	run.ID = r.store.nextRun
	clone := *run
	r.store.runs = append(r.store.runs, &clone)
	return run.ID, nil
}

func (r memRuns) Update(_ context.Context, run *entity.SyncRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, existing := range r.store.runs {
		if existing.ID == run.ID {
			clone := *run
			r.store.runs[i] = &clone
			return nil
		}
	}
	return entity.ErrNotFound
}

func (r memRuns) InsertItem(_ context.Context, item *entity.SyncRunItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *item
	r.store.items = append(r.store.items, &clone)
	return nil
}

func (r memRuns) LastSuccessFinishedAt(_ context.Context, subID int64) (*time.Time, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var latest *time.Time
	for _, item := range r.store.items {
		if item.SubscriptionID != subID || item.Status != entity.SyncItemStatusSuccess {
			continue
		}
		for _, run := range r.store.runs {
			if run.ID == item.SyncRunID && run.FinishedAt != nil {
				if latest == nil || run.FinishedAt.After(*latest) {
					latest = run.FinishedAt
				}
			}
		}
	}
	return latest, nil
}

func (r memRuns) LatestStartedInWindow(_ context.Context, start, end time.Time) (*entity.SyncRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var latest *entity.SyncRun
	for _, run := range r.store.runs {
		if run.StartedAt.Before(start) || !run.StartedAt.Before(end) {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	return latest, nil
}

func (r memRuns) Latest(context.Context) (*entity.SyncRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var latest *entity.SyncRun
	for _, run := range r.store.runs {
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	return latest, nil
}

func (r memRuns) ListItems(_ context.Context, runID int64) ([]*entity.SyncRunItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make([]*entity.SyncRunItem, 0, len(r.store.items))
	for _, item := range r.store.items {
		if item.SyncRunID == runID {
			result = append(result, item)
		}
	}
	return result, nil
}

// --- DiscoveryRepository

type memDiscovery struct{ store *memStore }

func (d memDiscovery) InsertRun(_ context.Context, run *entity.DiscoveryRun) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	clone := *run
	d.store.discoveries = append(d.store.discoveries, &clone)
	return nil
}

func (d memDiscovery) ListRunsByRun(_ context.Context, runID int64) ([]*entity.DiscoveryRun, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	result := make([]*entity.DiscoveryRun, 0, len(d.store.discoveries))
	for _, run := range d.store.discoveries {
		if run.SyncRunID == runID {
			result = append(result, run)
		}
	}
	return result, nil
}

func (d memDiscovery) UpsertRef(_ context.Context, ref *entity.ArticleRef) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	clone := *ref
	d.store.refs = append(d.store.refs, &clone)
	return nil
}

func (d memDiscovery) ListRecentRefs(context.Context, int64, int) ([]*entity.ArticleRef, error) {
	return nil, nil
}

// --- collaborators

type fakeGateway struct {
	results map[int64]sourceUC.FetchResult
	calls   int
}

func (f *fakeGateway) FetchWithFailover(_ context.Context, _ int64, sub *entity.Subscription, _ time.Time) sourceUC.FetchResult {
	f.calls++
	return f.results[sub.ID]
}

type fakeSummarizerSvc struct {
	text  string
	model string
}

func (f fakeSummarizerSvc) Summarize(_ context.Context, article entity.RawArticle) summarizer.Result {
	model := f.model
	if model == "" {
		model = "test-model"
	}
	textValue := f.text
	if textValue == "" {
		textValue = "这是一条合格的测试摘要，长度足以越过低质量阈值判断。"
	}
	return summarizer.Result{SummaryText: textValue, Model: model}
}

type fakeRecommender struct {
	recomputed int
	embedded   int
}

func (f *fakeRecommender) EnsureArticleEmbedding(context.Context, int64, string) ([]float64, error) {
	f.embedded++
	return []float64{1}, nil
}

func (f *fakeRecommender) RecomputeScoresForDate(context.Context, time.Time) error {
	f.recomputed++
	return nil
}

type fakeDiscoverer struct {
	result discoveryUC.Result
}

func (f *fakeDiscoverer) Discover(context.Context, *entity.Subscription, time.Time, time.Time) discoveryUC.Result {
	return f.result
}

type fakeMaterializer struct {
	articles []entity.RawArticle
}

func (f *fakeMaterializer) Materialize(context.Context, []discoveryUC.Ref, time.Time) []entity.RawArticle {
	return f.articles
}
