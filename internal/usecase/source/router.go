package source

import (
	"sort"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// Router ranks candidates for one subscription. The composite key, high
// first: pinned flag, preferred-provider bonus plus score, negated priority
// (smaller priority wins), then discovery recency.
type Router struct{}

// NewRouter creates a Router.
func NewRouter() *Router {
	return &Router{}
}

type rankKey struct {
	pinned     int
	score      float64
	priority   int
	discovered int64
}

func (r *Router) key(sub *entity.Subscription, candidate Candidate, health map[string]*entity.SourceHealth) rankKey {
	score := candidate.Confidence * 100.0
	if h, ok := health[candidate.Key()]; ok && h != nil {
		score = h.Score
	}
	preferredBonus := 0.0
	if sub.PreferredProvider != "" && sub.PreferredProvider == candidate.Provider {
		preferredBonus = 1000.0
	}
	pinned := 0
	if candidate.Pinned {
		pinned = 1
	}
	var discovered int64
	if !candidate.DiscoveredAt.IsZero() {
		discovered = candidate.DiscoveredAt.Unix()
	}
	return rankKey{
		pinned:     pinned,
		score:      preferredBonus + score,
		priority:   candidate.Priority,
		discovered: discovered,
	}
}

func (k rankKey) less(other rankKey) bool {
	if k.pinned != other.pinned {
		return k.pinned > other.pinned
	}
	if k.score != other.score {
		return k.score > other.score
	}
	if k.priority != other.priority {
		return k.priority < other.priority
	}
	return k.discovered > other.discovered
}

// Rank sorts candidates best-first.
func (r *Router) Rank(sub *entity.Subscription, candidates []Candidate, health map[string]*entity.SourceHealth) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return r.key(sub, ranked[i], health).less(r.key(sub, ranked[j], health))
	})
	return ranked
}

// PickBest returns the top-ranked candidate, or false when none exist.
func (r *Router) PickBest(sub *entity.Subscription, candidates []Candidate, health map[string]*entity.SourceHealth) (Candidate, bool) {
	ranked := r.Rank(sub, candidates, health)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}
