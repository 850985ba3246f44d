// Package healthcheck aggregates dependency probes for the /health endpoint.
package healthcheck

import (
	"context"
	"time"
)

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates check completed with warning.
	StatusWarn = "warn"
	// StatusError indicates check failed.
	StatusError = "error"
	// StatusUnknown indicates check result is not yet known.
	StatusUnknown = "unknown"
)

const defaultTimeout = 3 * time.Second

// CheckResult is one runtime check item produced by a checker.
type CheckResult struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Status  string        `json:"status"`
	Summary string        `json:"summary,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// Report is the aggregate of all checks. Status is the worst individual status.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

func (r Report) Healthy() bool { return r.Status != StatusError }

// Run evaluates every checker with a shared deadline.
func Run(ctx context.Context, timeout time.Duration, checkers ...Checker) Report {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := Report{Status: StatusOK, Checks: make([]CheckResult, 0, len(checkers))}
	for _, checker := range checkers {
		if checker == nil {
			continue
		}
		started := time.Now()
		result := checker.Check(ctx)
		if result.Latency == 0 {
			result.Latency = time.Since(started)
		}
		if result.Status == "" {
			result.Status = StatusUnknown
		}
		report.Checks = append(report.Checks, result)
		if rank(result.Status) > rank(report.Status) {
			report.Status = result.Status
		}
	}
	return report
}

func rank(status string) int {
	switch status {
	case StatusOK:
		return 0
	case StatusUnknown:
		return 1
	case StatusWarn:
		return 2
	default:
		return 3
	}
}
