package gateway

import (
	"sync"
	"time"
)

type typingKey struct {
	conversationID string
	userID         string
}

type typingEntry struct {
	timer *time.Timer
}

// typingTracker keeps one expiring flag per user and conversation. notify fires on
// every start and stop transition, including expiry.
type typingTracker struct {
	ttl    time.Duration
	notify func(conversationID, userID string, typing bool)

	mu      sync.Mutex
	entries map[typingKey]*typingEntry
}

func newTypingTracker(ttl time.Duration, notify func(conversationID, userID string, typing bool)) *typingTracker {
	return &typingTracker{ttl: ttl, notify: notify, entries: map[typingKey]*typingEntry{}}
}

// Start marks the user as typing, or extends an active flag without notifying again.
func (t *typingTracker) Start(conversationID, userID string) {
	key := typingKey{conversationID, userID}
	t.mu.Lock()
	if e, ok := t.entries[key]; ok && e.timer.Stop() {
		e.timer.Reset(t.ttl)
		t.mu.Unlock()
		return
	}
	e := &typingEntry{}
	e.timer = time.AfterFunc(t.ttl, func() { t.expire(key, e) })
	t.entries[key] = e
	t.mu.Unlock()
	t.notify(conversationID, userID, true)
}

// Stop clears the flag. It reports whether the user was typing.
func (t *typingTracker) Stop(conversationID, userID string) bool {
	key := typingKey{conversationID, userID}
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		e.timer.Stop()
		delete(t.entries, key)
	}
	t.mu.Unlock()
	if ok {
		t.notify(conversationID, userID, false)
	}
	return ok
}

func (t *typingTracker) expire(key typingKey, e *typingEntry) {
	t.mu.Lock()
	if t.entries[key] != e {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	t.mu.Unlock()
	t.notify(key.conversationID, key.userID, false)
}

func (t *typingTracker) Active(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[typingKey{conversationID, userID}]
	return ok
}

// StopAll clears every flag, used on shutdown.
func (t *typingTracker) StopAll() {
	t.mu.Lock()
	for key, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, key)
	}
	t.mu.Unlock()
}
