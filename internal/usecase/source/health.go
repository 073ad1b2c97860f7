package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// HealthWeights are the rolling-score weights. The defaults are the tested
// values; they stay configurable as tunables.
type HealthWeights struct {
	SuccessRate float64
	Latency     float64
	Freshness   float64
	Coverage    float64
}

// DefaultHealthWeights returns the tested default weight split.
func DefaultHealthWeights() HealthWeights {
	return HealthWeights{SuccessRate: 0.45, Latency: 0.25, Freshness: 0.20, Coverage: 0.10}
}

// HealthConfig parameterizes the circuit and the rolling score.
type HealthConfig struct {
	FailThreshold int
	Cooldown      time.Duration
	Weights       HealthWeights
}

// DefaultHealthConfig returns the default circuit parameters.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailThreshold: 3,
		Cooldown:      30 * time.Minute,
		Weights:       DefaultHealthWeights(),
	}
}

// HealthService maintains per-candidate circuit state and rolling metrics.
// All transitions and the paired attempt append run under one mutex so
// threshold arithmetic is race-free across concurrent subscriptions.
type HealthService struct {
	healthRepo  repository.HealthRepository
	attemptRepo repository.AttemptRepository
	cfg         HealthConfig

	mu sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewHealthService creates a HealthService.
func NewHealthService(healthRepo repository.HealthRepository, attemptRepo repository.AttemptRepository, cfg HealthConfig) *HealthService {
	if cfg.FailThreshold < 1 {
		cfg.FailThreshold = 1
	}
	if cfg.Cooldown < time.Minute {
		cfg.Cooldown = time.Minute
	}
	if cfg.Weights == (HealthWeights{}) {
		cfg.Weights = DefaultHealthWeights()
	}
	return &HealthService{
		healthRepo:  healthRepo,
		attemptRepo: attemptRepo,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LoadHealthMap returns the health rows for a subscription keyed by
// "provider|url".
func (s *HealthService) LoadHealthMap(ctx context.Context, subscriptionID int64) (map[string]*entity.SourceHealth, error) {
	return s.healthRepo.MapBySubscription(ctx, subscriptionID)
}

// ShouldSkipForCircuit reports whether the candidate's circuit is open.
// When the cooldown has elapsed the circuit moves to HALF_OPEN exactly once,
// without any extra I/O, and the caller proceeds with a single trial.
func (s *HealthService) ShouldSkipForCircuit(ctx context.Context, candidate Candidate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	health, err := s.healthRepo.Get(ctx, candidate.SubscriptionID, candidate.Provider, candidate.URL)
	if errors.Is(err, entity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ShouldSkipForCircuit: %w", err)
	}
	if health.State != entity.HealthStateOpen {
		return false, nil
	}

	now := s.now()
	if health.CooldownUntil != nil && health.CooldownUntil.After(now) {
		return true, nil
	}

	health.State = entity.HealthStateHalfOpen
	health.UpdatedAt = now
	if err := s.healthRepo.Upsert(ctx, health); err != nil {
		return false, fmt.Errorf("ShouldSkipForCircuit: %w", err)
	}
	return false, nil
}

// RecordAttempt appends the immutable attempt row and applies the health
// transition atomically.
func (s *HealthService) RecordAttempt(ctx context.Context, syncRunID int64, candidate Candidate, status string, latencyMS int, errorKind, errorMessage string, httpCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	attempt := &entity.FetchAttempt{
		SyncRunID:      syncRunID,
		SubscriptionID: candidate.SubscriptionID,
		Provider:       candidate.Provider,
		SourceURL:      candidate.URL,
		Status:         status,
		LatencyMS:      latencyMS,
		ErrorKind:      errorKind,
		ErrorMessage:   errorMessage,
		CreatedAt:      now,
	}
	if httpCode > 0 {
		attempt.HTTPCode = &httpCode
	}
	if err := s.attemptRepo.Insert(ctx, attempt); err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}

	health, err := s.getOrCreate(ctx, candidate)
	if err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}

	switch status {
	case entity.FetchStatusSuccess:
		health.ConsecutiveFailures = 0
		health.State = entity.HealthStateClosed
		health.CooldownUntil = nil
		lastOk := now
		health.LastOkAt = &lastOk
		health.LastError = ""
	case entity.FetchStatusFailed:
		health.ConsecutiveFailures++
		health.LastError = errorMessage
		if health.ConsecutiveFailures >= s.cfg.FailThreshold {
			health.State = entity.HealthStateOpen
			until := now.Add(s.cfg.Cooldown)
			health.CooldownUntil = &until
		} else if health.State == entity.HealthStateOpen {
			health.State = entity.HealthStateHalfOpen
		}
	}
	health.UpdatedAt = now

	if err := s.refreshMetrics(ctx, health, now); err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}
	if err := s.healthRepo.Upsert(ctx, health); err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}
	return nil
}

// refreshMetrics recomputes the 24h rolling metrics and the weighted score.
func (s *HealthService) refreshMetrics(ctx context.Context, health *entity.SourceHealth, now time.Time) error {
	lower := now.Add(-24 * time.Hour)
	attempts, err := s.attemptRepo.ListSince(ctx, health.SubscriptionID, health.Provider, health.SourceURL, lower)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		health.SuccessRate24h = 0
		health.AvgLatencyMS = 0
		health.Score = clamp(health.Score, 0, 100)
		return nil
	}

	total := len(attempts)
	success := 0
	var latencySum float64
	for _, attempt := range attempts {
		if attempt.Status == entity.FetchStatusSuccess {
			success++
		}
		latencySum += float64(attempt.LatencyMS)
	}
	successRate := float64(success) / float64(total)
	avgLatency := latencySum / float64(total)

	freshness := 0.0
	if health.LastOkAt != nil {
		ageHours := now.Sub(*health.LastOkAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		freshness = clamp(1.0-ageHours/24.0, 0, 1)
	}
	latencyNorm := clamp(avgLatency/5000.0, 0, 1)
	coverage := clamp(float64(total)/7.0, 0, 1)

	w := s.cfg.Weights
	score := 100.0 * (w.SuccessRate*successRate +
		w.Latency*(1.0-latencyNorm) +
		w.Freshness*freshness +
		w.Coverage*coverage)

	health.SuccessRate24h = successRate
	health.AvgLatencyMS = avgLatency
	health.Score = clamp(score, 0, 100)
	return nil
}

func (s *HealthService) getOrCreate(ctx context.Context, candidate Candidate) (*entity.SourceHealth, error) {
	health, err := s.healthRepo.Get(ctx, candidate.SubscriptionID, candidate.Provider, candidate.URL)
	if err == nil {
		return health, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	return &entity.SourceHealth{
		SubscriptionID: candidate.SubscriptionID,
		Provider:       candidate.Provider,
		SourceURL:      candidate.URL,
		State:          entity.HealthStateClosed,
		Score:          candidate.Confidence * 100.0,
	}, nil
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
