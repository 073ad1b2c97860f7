package source

import (
	"context"
	"sync"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// fakeHealthRepo is an in-memory repository.HealthRepository.
type fakeHealthRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.SourceHealth
}

func newFakeHealthRepo() *fakeHealthRepo {
	return &fakeHealthRepo{rows: map[string]*entity.SourceHealth{}}
}

func healthKey(subID int64, provider, url string) string {
	return provider + "|" + url
}

func (f *fakeHealthRepo) Get(_ context.Context, subID int64, provider, url string) (*entity.SourceHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[healthKey(subID, provider, url)]
	if !ok {
		return nil, entity.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeHealthRepo) MapBySubscription(_ context.Context, subID int64) (map[string]*entity.SourceHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := map[string]*entity.SourceHealth{}
	for key, row := range f.rows {
		clone := *row
		result[key] = &clone
	}
	return result, nil
}

func (f *fakeHealthRepo) Upsert(_ context.Context, health *entity.SourceHealth) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *health
	f.rows[healthKey(health.SubscriptionID, health.Provider, health.SourceURL)] = &clone
	return nil
}

func (f *fakeHealthRepo) LastOkBySubscription(context.Context) (map[int64]time.Time, error) {
	return map[int64]time.Time{}, nil
}

// fakeAttemptRepo is an in-memory repository.AttemptRepository.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*entity.FetchAttempt
}

func (f *fakeAttemptRepo) Insert(_ context.Context, attempt *entity.FetchAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *attempt
	f.attempts = append(f.attempts, &clone)
	return nil
}

func (f *fakeAttemptRepo) ListSince(_ context.Context, subID int64, provider, url string, since time.Time) ([]*entity.FetchAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*entity.FetchAttempt, 0, len(f.attempts))
	for _, attempt := range f.attempts {
		if attempt.SubscriptionID == subID && attempt.Provider == provider &&
			attempt.SourceURL == url && !attempt.CreatedAt.Before(since) {
			result = append(result, attempt)
		}
	}
	return result, nil
}

// fakeSourceRepo is an in-memory repository.SourceRepository.
type fakeSourceRepo struct {
	mu   sync.Mutex
	rows []*entity.SubscriptionSource
	next int64
}

func (f *fakeSourceRepo) Upsert(_ context.Context, src *entity.SubscriptionSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.SubscriptionID == src.SubscriptionID && row.Provider == src.Provider && row.SourceURL == src.SourceURL {
			row.Priority = src.Priority
			row.Active = true
			row.Confidence = src.Confidence
			if src.Pinned {
				row.Pinned = true
			}
			if src.MetadataJSON != "" {
				row.MetadataJSON = src.MetadataJSON
			}
			row.DiscoveredAt = src.DiscoveredAt
			return nil
		}
	}
	f.next++
	clone := *src
	clone.ID = f.next
	clone.Active = true
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeSourceRepo) list(subID int64, provider string, activeOnly bool) []*entity.SubscriptionSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*entity.SubscriptionSource, 0, len(f.rows))
	for _, row := range f.rows {
		if row.SubscriptionID != subID {
			continue
		}
		if provider != "" && row.Provider != provider {
			continue
		}
		if activeOnly && !row.Active {
			continue
		}
		result = append(result, row)
	}
	return result
}

func (f *fakeSourceRepo) ListActive(_ context.Context, subID int64) ([]*entity.SubscriptionSource, error) {
	return f.list(subID, "", true), nil
}

func (f *fakeSourceRepo) ListActiveByProvider(_ context.Context, subID int64, provider string) ([]*entity.SubscriptionSource, error) {
	return f.list(subID, provider, true), nil
}

func (f *fakeSourceRepo) ListByProvider(_ context.Context, subID int64, provider string) ([]*entity.SubscriptionSource, error) {
	return f.list(subID, provider, false), nil
}

func (f *fakeSourceRepo) Update(_ context.Context, src *entity.SubscriptionSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.ID == src.ID {
			clone := *src
			f.rows[i] = &clone
			return nil
		}
	}
	return nil
}

// stubProvider is a scripted feed provider.
type stubProvider struct {
	name       string
	candidates []Candidate
	probe      ProbeResult
	fetchFn    func(Candidate) ([]entity.RawArticle, error)
	fetchCalls int
	probeCalls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Discover(context.Context, *entity.Subscription) ([]Candidate, error) {
	return s.candidates, nil
}

func (s *stubProvider) Probe(context.Context, Candidate) ProbeResult {
	s.probeCalls++
	return s.probe
}

func (s *stubProvider) Fetch(_ context.Context, candidate Candidate, _ time.Time) ([]entity.RawArticle, error) {
	s.fetchCalls++
	if s.fetchFn != nil {
		return s.fetchFn(candidate)
	}
	return nil, nil
}
