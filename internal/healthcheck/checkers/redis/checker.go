package redischecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tellerdesk/tellerdesk/internal/healthcheck"
)

const checkType = "redis"

type Checker struct {
	logger *slog.Logger
	client redis.UniversalClient
}

// NewChecker probes the event bridge connection. A nil client means the bridge is disabled.
func NewChecker(log *slog.Logger, client redis.UniversalClient) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{logger: log.With(slog.String("checker", "healthcheck_redis")), client: client}
}

func (c *Checker) Check(ctx context.Context) healthcheck.CheckResult {
	result := healthcheck.CheckResult{ID: "redis.bridge", Type: checkType}
	if c.client == nil {
		result.Status = healthcheck.StatusOK
		result.Summary = "disabled"
		return result
	}
	started := time.Now()
	err := c.client.Ping(ctx).Err()
	result.Latency = time.Since(started)
	if err != nil {
		// Sockets on this node keep working without the bridge, so this only degrades.
		c.logger.Warn("redis ping failed", slog.Any("error", err))
		result.Status = healthcheck.StatusWarn
		result.Summary = "unreachable"
		result.Detail = err.Error()
		return result
	}
	result.Status = healthcheck.StatusOK
	result.Summary = "reachable"
	return result
}
