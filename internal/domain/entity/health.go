package entity

import "time"

// Circuit states for a (subscription, provider, url) candidate.
const (
	HealthStateClosed   = "CLOSED"
	HealthStateOpen     = "OPEN"
	HealthStateHalfOpen = "HALF_OPEN"
)

// Fetch attempt statuses.
const (
	FetchStatusSuccess = "SUCCESS"
	FetchStatusFailed  = "FAILED"
	FetchStatusSkipped = "SKIPPED"
)

// SourceHealth holds rolling reliability for one candidate.
// Score is in [0,100]; the state machine follows the consecutive-failure
// threshold and the cooldown window.
type SourceHealth struct {
	ID                  int64
	SubscriptionID      int64
	Provider            string
	SourceURL           string
	State               string
	Score               float64
	SuccessRate24h      float64
	AvgLatencyMS        float64
	ConsecutiveFailures int
	CooldownUntil       *time.Time
	LastOkAt            *time.Time
	LastError           string
	UpdatedAt           time.Time
}

// FetchAttempt is an immutable log row for one probe/fetch outcome.
type FetchAttempt struct {
	ID             int64
	SyncRunID      int64
	SubscriptionID int64
	Provider       string
	SourceURL      string
	Status         string
	HTTPCode       *int
	LatencyMS      int
	ErrorKind      string
	ErrorMessage   string
	CreatedAt      time.Time
}
