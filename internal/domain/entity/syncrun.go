package entity

import "time"

// Sync run item statuses.
const (
	SyncItemStatusSuccess = "SUCCESS"
	SyncItemStatusFailed  = "FAILED"
)

// SyncRun records one execution of the sync engine. Counters are cumulative
// and monotonic across the run. FinishedAt stays NULL when the run was
// cancelled between subscriptions.
type SyncRun struct {
	ID           int64
	PublicID     string
	Trigger      string
	StartedAt    time.Time
	FinishedAt   *time.Time
	SuccessCount int
	FailCount    int
	NewCount     int
}

// SyncRunItem is the per-subscription outcome within a run.
type SyncRunItem struct {
	ID             int64
	SyncRunID      int64
	SubscriptionID int64
	Status         string
	NewCount       int
	ErrorMessage   string
}

// DiscoveryRun is the per-subscription discovery outcome within a run
// (v2 acquisition path only).
type DiscoveryRun struct {
	ID             int64
	SyncRunID      int64
	SubscriptionID int64
	Channel        string
	Status         string
	RefCount       int
	ErrorKind      string
	LatencyMS      int
	CreatedAt      time.Time
}
