package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScanRunClaimable(t *testing.T) {
	now := time.Now()
	staleness := 300 * time.Second
	fresh := now.Add(-30 * time.Second)
	stale := now.Add(-301 * time.Second)

	tests := []struct {
		name string
		run  ScanRun
		want bool
	}{
		{"idle is free", ScanRun{Status: ScanStatusIdle}, true},
		{"stopped is free", ScanRun{Status: ScanStatusStopped}, true},
		{"crashed is free", ScanRun{Status: ScanStatusCrashed}, true},
		{"running with fresh heartbeat is held", ScanRun{Status: ScanStatusRunning, HeartbeatAt: &fresh}, false},
		{"running with stale heartbeat is reclaimable", ScanRun{Status: ScanStatusRunning, HeartbeatAt: &stale}, true},
		{"running without heartbeat is reclaimable", ScanRun{Status: ScanStatusRunning}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.run.Claimable(now, staleness))
		})
	}
}

func TestScanRunHeldBy(t *testing.T) {
	now := time.Now()
	staleness := 300 * time.Second
	fresh := now.Add(-30 * time.Second)
	stale := now.Add(-301 * time.Second)

	live := ScanRun{Status: ScanStatusRunning, Owner: "a", HeartbeatAt: &fresh}
	assert.True(t, live.HeldBy("a", now, staleness))
	assert.False(t, live.HeldBy("b", now, staleness))

	expired := ScanRun{Status: ScanStatusRunning, Owner: "a", HeartbeatAt: &stale}
	assert.False(t, expired.HeldBy("a", now, staleness), "a stale claim is no longer held")

	stopped := ScanRun{Status: ScanStatusStopped, Owner: "a", HeartbeatAt: &fresh}
	assert.False(t, stopped.HeldBy("a", now, staleness))
}
