package redischecker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/tellerdesk/tellerdesk/internal/healthcheck"
)

func TestChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewChecker(nil, client)
	assert.Equal(t, healthcheck.StatusOK, checker.Check(context.Background()).Status)

	mr.Close()
	down := checker.Check(context.Background())
	assert.Equal(t, healthcheck.StatusWarn, down.Status)
	assert.NotEmpty(t, down.Detail)

	assert.Equal(t, "disabled", NewChecker(nil, nil).Check(context.Background()).Summary)
}
