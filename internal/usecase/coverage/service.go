// Package coverage computes per-day acquisition coverage: which
// subscriptions got fresh content, which served cache, which failed, and
// why.
package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/timeutil"
	"github.com/v6582374-netizen/Cerebro/internal/repository"
)

// SubscriptionDetail is one subscription's classification for the day.
type SubscriptionDetail struct {
	Name      string `json:"name"`
	WechatID  string `json:"wechat_id"`
	Status    string `json:"status"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Report is the aggregate for one date.
type Report struct {
	Date          string
	TotalSubs     int
	SuccessSubs   int
	DelayedSubs   int
	FailSubs      int
	CoverageRatio float64
	SLATarget     float64
	Details       []SubscriptionDetail
	ByErrorKind   map[string]int
}

// MeetsSLA reports whether the coverage ratio clears the configured target.
func (r Report) MeetsSLA() bool {
	return r.CoverageRatio >= r.SLATarget
}

// Service computes and persists coverage aggregates.
type Service struct {
	subscriptionRepo repository.SubscriptionRepository
	syncRunRepo      repository.SyncRunRepository
	discoveryRepo    repository.DiscoveryRepository
	coverageRepo     repository.CoverageRepository
	slaTarget        float64
}

// NewService creates the coverage service.
func NewService(
	subscriptionRepo repository.SubscriptionRepository,
	syncRunRepo repository.SyncRunRepository,
	discoveryRepo repository.DiscoveryRepository,
	coverageRepo repository.CoverageRepository,
	slaTarget float64,
) *Service {
	return &Service{
		subscriptionRepo: subscriptionRepo,
		syncRunRepo:      syncRunRepo,
		discoveryRepo:    discoveryRepo,
		coverageRepo:     coverageRepo,
		slaTarget:        slaTarget,
	}
}

// Compute classifies every subscription for the date, upserts the
// CoverageDaily row, and returns the report. A subscription without a
// discovery row for the selected run counts as FAILED.
func (s *Service) Compute(ctx context.Context, targetDate time.Time) (*Report, error) {
	dayStart, dayEnd := timeutil.LocalDayBounds(targetDate)

	run, err := s.syncRunRepo.LatestStartedInWindow(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("Compute: %w", err)
	}
	if run == nil {
		run, err = s.syncRunRepo.Latest(ctx)
		if err != nil {
			return nil, fmt.Errorf("Compute: %w", err)
		}
	}

	subscriptions, err := s.subscriptionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Compute: %w", err)
	}

	statusBySub := make(map[int64]string)
	errorKindBySub := make(map[int64]string)
	if run != nil {
		rows, err := s.discoveryRepo.ListRunsByRun(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("Compute: %w", err)
		}
		for _, row := range rows {
			statusBySub[row.SubscriptionID] = row.Status
			if row.ErrorKind != "" {
				errorKindBySub[row.SubscriptionID] = row.ErrorKind
			}
		}
		// Without discovery rows (v1 acquisition), sync items classify.
		if len(rows) == 0 {
			items, err := s.syncRunRepo.ListItems(ctx, run.ID)
			if err != nil {
				return nil, fmt.Errorf("Compute: %w", err)
			}
			for _, item := range items {
				if item.Status == entity.SyncItemStatusSuccess {
					statusBySub[item.SubscriptionID] = entity.DiscoveryStatusSuccess
				} else {
					statusBySub[item.SubscriptionID] = entity.DiscoveryStatusFailed
				}
			}
		}
	}

	report := &Report{
		Date:        timeutil.DayString(targetDate),
		TotalSubs:   len(subscriptions),
		SLATarget:   s.slaTarget,
		ByErrorKind: map[string]int{},
	}

	ordered := append([]*entity.Subscription(nil), subscriptions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	for _, sub := range ordered {
		status, ok := statusBySub[sub.ID]
		if !ok {
			status = entity.DiscoveryStatusFailed
		}
		switch status {
		case entity.DiscoveryStatusSuccess:
			report.SuccessSubs++
		case entity.DiscoveryStatusDelayed:
			report.DelayedSubs++
		default:
			report.FailSubs++
		}
		errorKind := errorKindBySub[sub.ID]
		if status != entity.DiscoveryStatusSuccess && status != entity.DiscoveryStatusDelayed {
			if errorKind == "" {
				errorKind = entity.ErrKindUnknown
			}
			report.ByErrorKind[errorKind]++
		}
		report.Details = append(report.Details, SubscriptionDetail{
			Name:      sub.Name,
			WechatID:  sub.WechatID,
			Status:    status,
			ErrorKind: errorKind,
		})
	}

	if report.TotalSubs == 0 {
		report.CoverageRatio = 1.0
	} else {
		report.CoverageRatio = float64(report.SuccessSubs+report.DelayedSubs) / float64(report.TotalSubs)
	}

	if err := s.persist(ctx, report); err != nil {
		return nil, fmt.Errorf("Compute: %w", err)
	}
	return report, nil
}

// Get returns a previously computed aggregate, or nil when absent.
func (s *Service) Get(ctx context.Context, targetDate time.Time) (*entity.CoverageDaily, error) {
	row, err := s.coverageRepo.Get(ctx, timeutil.DayString(targetDate))
	if errors.Is(err, entity.ErrNotFound) {
		return nil, nil
	}
	return row, err
}

func (s *Service) persist(ctx context.Context, report *Report) error {
	detail, err := json.Marshal(map[string]any{
		"subscriptions": report.Details,
		"by_error_kind": report.ByErrorKind,
	})
	if err != nil {
		return err
	}
	return s.coverageRepo.Upsert(ctx, &entity.CoverageDaily{
		Date:          report.Date,
		TotalSubs:     report.TotalSubs,
		SuccessSubs:   report.SuccessSubs,
		DelayedSubs:   report.DelayedSubs,
		FailSubs:      report.FailSubs,
		CoverageRatio: report.CoverageRatio,
		DetailJSON:    string(detail),
	})
}
