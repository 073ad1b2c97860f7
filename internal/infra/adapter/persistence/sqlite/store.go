// Package sqlite provides SQLite implementations of repository interfaces.
// All repositories created from one Store share a write mutex so persistence
// writes serialize on the shared connection, as the concurrency model
// requires.
package sqlite

import (
	"database/sql"
	"sync"

	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// Store bundles all repositories over one database handle.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	Subscriptions   repository.SubscriptionRepository
	Sources         repository.SourceRepository
	Health          repository.HealthRepository
	Attempts        repository.AttemptRepository
	Articles        repository.ArticleRepository
	Summaries       repository.SummaryRepository
	ReadStates      repository.ReadStateRepository
	Embeddings      repository.EmbeddingRepository
	Recommendations repository.RecommendationRepository
	SyncRuns        repository.SyncRunRepository
	Discovery       repository.DiscoveryRepository
	Coverage        repository.CoverageRepository
	AuthSessions    repository.AuthSessionRepository
}

// NewStore creates the repository bundle for the given database.
func NewStore(database *sql.DB) *Store {
	store := &Store{db: database}
	store.Subscriptions = &SubscriptionRepo{store: store}
	store.Sources = &SourceRepo{store: store}
	store.Health = &HealthRepo{store: store}
	store.Attempts = &AttemptRepo{store: store}
	store.Articles = &ArticleRepo{store: store}
	store.Summaries = &SummaryRepo{store: store}
	store.ReadStates = &ReadStateRepo{store: store}
	store.Embeddings = &EmbeddingRepo{store: store}
	store.Recommendations = &RecommendationRepo{store: store}
	store.SyncRuns = &SyncRunRepo{store: store}
	store.Discovery = &DiscoveryRepo{store: store}
	store.Coverage = &CoverageRepo{store: store}
	store.AuthSessions = &AuthSessionRepo{store: store}
	return store
}

// Lock serializes one write across all repositories of this store, so
// persistence writes never interleave on the shared connection.
func (s *Store) Lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}
