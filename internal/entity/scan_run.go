package entity

import "time"

// ScanStatus is the lifecycle state of the per-account scan loop.
type ScanStatus string

const (
	ScanStatusIdle    ScanStatus = "IDLE"
	ScanStatusRunning ScanStatus = "RUNNING"
	ScanStatusStopped ScanStatus = "STOPPED"
	ScanStatusCrashed ScanStatus = "CRASHED"
)

// ScanRun is the mutual-exclusion token for the background scanner. One row
// exists per account (unique index); claiming it is an atomic check-and-set
// so two loops can never run concurrently, across processes included.
type ScanRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Account     string     `gorm:"not null;uniqueIndex" json:"account"`
	Status      ScanStatus `gorm:"not null;default:IDLE" json:"status"`
	Owner       string     `json:"owner"`
	StartedAt   *time.Time `json:"started_at"`
	HeartbeatAt *time.Time `json:"heartbeat_at"`
	LastError   string     `json:"last_error"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ScanRun) TableName() string {
	return "scan_runs"
}

// Claimable reports whether a start attempt by owner at now may take the run
// token. IDLE, STOPPED and CRASHED rows are free; a RUNNING row is reclaimable
// only once its heartbeat is older than the staleness threshold.
func (r *ScanRun) Claimable(now time.Time, staleness time.Duration) bool {
	switch r.Status {
	case ScanStatusIdle, ScanStatusStopped, ScanStatusCrashed:
		return true
	case ScanStatusRunning:
		return r.HeartbeatAt == nil || now.Sub(*r.HeartbeatAt) > staleness
	default:
		return false
	}
}

// HeldBy reports whether the token is live and owned by the given owner.
func (r *ScanRun) HeldBy(owner string, now time.Time, staleness time.Duration) bool {
	return r.Status == ScanStatusRunning && r.Owner == owner &&
		r.HeartbeatAt != nil && now.Sub(*r.HeartbeatAt) <= staleness
}
