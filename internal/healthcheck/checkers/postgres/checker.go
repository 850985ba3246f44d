package pgchecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/tellerdesk/tellerdesk/internal/healthcheck"
)

const checkType = "postgres"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Checker struct {
	logger *slog.Logger
	pool   Pinger
}

func NewChecker(log *slog.Logger, pool Pinger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{logger: log.With(slog.String("checker", "healthcheck_postgres")), pool: pool}
}

func (c *Checker) Check(ctx context.Context) healthcheck.CheckResult {
	result := healthcheck.CheckResult{ID: "postgres.pool", Type: checkType}
	if c.pool == nil {
		result.Status = healthcheck.StatusUnknown
		result.Summary = "not configured"
		return result
	}
	started := time.Now()
	err := c.pool.Ping(ctx)
	result.Latency = time.Since(started)
	if err != nil {
		c.logger.Warn("postgres ping failed", slog.Any("error", err))
		result.Status = healthcheck.StatusError
		result.Summary = "unreachable"
		result.Detail = err.Error()
		return result
	}
	result.Status = healthcheck.StatusOK
	result.Summary = "reachable"
	return result
}
