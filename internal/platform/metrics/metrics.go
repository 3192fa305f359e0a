package metrics

import (
	"sync/atomic"
	"time"
)

const (
	LeaveSubmitted = "submitted"
	LeaveApproved  = "approved"
	LeaveRejected  = "rejected"
	LeaveCancelled = "cancelled"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	leaveSubmitted uint64
	leaveApproved  uint64
	leaveRejected  uint64
	leaveCancelled uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordLeave counts a committed workflow transition. Unknown events are ignored.
func (c *Collector) RecordLeave(event string) {
	switch event {
	case LeaveSubmitted:
		atomic.AddUint64(&c.leaveSubmitted, 1)
	case LeaveApproved:
		atomic.AddUint64(&c.leaveApproved, 1)
	case LeaveRejected:
		atomic.AddUint64(&c.leaveRejected, 1)
	case LeaveCancelled:
		atomic.AddUint64(&c.leaveCancelled, 1)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"leave": map[string]uint64{
			"submitted": atomic.LoadUint64(&c.leaveSubmitted),
			"approved":  atomic.LoadUint64(&c.leaveApproved),
			"rejected":  atomic.LoadUint64(&c.leaveRejected),
			"cancelled": atomic.LoadUint64(&c.leaveCancelled),
		},
	}
}
