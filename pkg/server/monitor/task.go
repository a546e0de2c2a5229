// Package monitor tracks the health of the server's background work: the
// collection loop, the rollup job, and on-disk storage growth. The health
// endpoint reads these monitors.
package monitor

import (
	"sync"
	"time"
)

// TaskMonitor tracks the health of one recurring background task. A task is
// healthy once it has succeeded recently and is not failing repeatedly.
type TaskMonitor struct {
	mu                sync.RWMutex
	name              string
	maxAge            time.Duration
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// NewTaskMonitor creates a monitor for a task expected to succeed at least
// once per maxAge.
func NewTaskMonitor(name string, maxAge time.Duration) *TaskMonitor {
	return &TaskMonitor{name: name, maxAge: maxAge}
}

// RecordSuccess records a successful run.
func (tm *TaskMonitor) RecordSuccess() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.lastSuccess = time.Now()
	tm.lastAttempt = time.Now()
	tm.consecutiveErrors = 0
	tm.lastError = ""
}

// RecordFailure records a failed run.
func (tm *TaskMonitor) RecordFailure(err error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.lastAttempt = time.Now()
	tm.consecutiveErrors++
	if err != nil {
		tm.lastError = err.Error()
	}
}

// IsHealthy reports whether the task is working properly. Unhealthy
// conditions:
//   - never succeeded
//   - no success within maxAge
//   - more than 3 consecutive failures
func (tm *TaskMonitor) IsHealthy() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.isHealthyLocked()
}

// TaskStatus is the health-endpoint view of one background task.
type TaskStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status snapshots the task's current health.
func (tm *TaskMonitor) Status() TaskStatus {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	status := TaskStatus{
		Healthy: tm.isHealthyLocked(),
	}

	if !tm.lastSuccess.IsZero() {
		status.LastSuccess = tm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(tm.lastSuccess).String()
	}
	if !tm.lastAttempt.IsZero() {
		status.LastAttempt = tm.lastAttempt.Format(time.RFC3339)
	}
	if tm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = tm.consecutiveErrors
		status.LastError = tm.lastError
	}

	return status
}

func (tm *TaskMonitor) isHealthyLocked() bool {
	if tm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(tm.lastSuccess) > tm.maxAge {
		return false
	}
	if tm.consecutiveErrors > 3 {
		return false
	}
	return true
}
