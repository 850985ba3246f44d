package event

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/config"
)

func newBridge(t *testing.T, ctx context.Context, addr string) (*RedisBridge, *Hub) {
	t.Helper()
	client, err := NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub()
	return NewRedisBridge(nil, hub, client, "test:events"), hub
}

func runBridge(t *testing.T, ctx context.Context, bridge *RedisBridge) {
	t.Helper()
	ready := make(chan struct{})
	go func() { _ = bridge.Run(ctx, ready) }()
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not subscribe")
	}
}

func startBridge(t *testing.T, ctx context.Context, addr string) (*RedisBridge, *Hub) {
	t.Helper()
	bridge, hub := newBridge(t, ctx, addr)
	runBridge(t, ctx, bridge)
	return bridge, hub
}

func TestRedisBridgeRelaysBetweenNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA, _ := startBridge(t, ctx, mr.Addr())
	nodeB, _ := startBridge(t, ctx, mr.Addr())
	require.NotEqual(t, nodeA.Node(), nodeB.Node())

	_, onA, cancelA := nodeA.Subscribe("conv-1", 8)
	defer cancelA()
	_, onB, cancelB := nodeB.Subscribe("conv-1", 8)
	defer cancelB()

	nodeA.Publish(New(TypeMessageCreated, "conv-1", "u1", map[string]string{"id": "m1"}))

	local := receive(t, onA)
	assert.Equal(t, TypeMessageCreated, local.Type)
	remote := receive(t, onB)
	assert.Equal(t, "conv-1", remote.ConversationID)
	assert.JSONEq(t, `{"id":"m1"}`, string(remote.Data))

	// Node A must not see its own envelope a second time.
	assertSilent(t, onA)
}

func TestRedisBridgePublishDoesNotWaitForRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Not running yet, so nothing drains the outbox.
	bridge, _ := newBridge(t, ctx, mr.Addr())
	_, local, cancelLocal := bridge.Subscribe("conv-1", outboxSize+8)
	defer cancelLocal()

	started := time.Now()
	for i := 0; i < outboxSize+5; i++ {
		bridge.Publish(New(TypeTyping, "conv-1", "u1", nil))
	}
	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, int64(5), bridge.Dropped())
	assert.Len(t, local, outboxSize+5, "local delivery is never dropped by the outbox")
}

func TestRedisBridgeSendsQueuedEventsOnceRunning(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeB, _ := startBridge(t, ctx, mr.Addr())
	_, onB, cancelB := nodeB.Subscribe("conv-1", 8)
	defer cancelB()

	nodeA, _ := newBridge(t, ctx, mr.Addr())
	nodeA.Publish(New(TypeMessageCreated, "conv-1", "u1", map[string]string{"id": "early"}))
	assertSilent(t, onB)

	runBridge(t, ctx, nodeA)
	remote := receive(t, onB)
	assert.JSONEq(t, `{"id":"early"}`, string(remote.Data))
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
