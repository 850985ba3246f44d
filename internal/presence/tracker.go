// Package presence tracks who is online, away, busy or offline.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tellerdesk/tellerdesk/internal/db"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
)

const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

var (
	ErrInvalidStatus = errors.New("invalid presence status")
	ErrInvalidUser   = errors.New("invalid user id")
)

func ValidStatus(status string) bool {
	switch status {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type Presence struct {
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Tracker counts live sockets per user on this node and persists transitions.
type Tracker struct {
	queries   sqlc.Querier
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	conns map[string]int
	// chosen holds a status the user picked explicitly; it survives reconnects.
	chosen map[string]string
	// users serialises count changes with their upsert so writes land in count order.
	users map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewTracker(log *slog.Logger, queries sqlc.Querier, publisher event.Publisher) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		queries:   queries,
		publisher: publisher,
		logger:    log.With(slog.String("service", "presence")),
		now:       time.Now,
		conns:     map[string]int{},
		chosen:    map[string]string{},
		users:     map[string]*userLock{},
	}
}

// lockUser holds the per-user lock until the returned func is called.
func (t *Tracker) lockUser(key string) func() {
	t.mu.Lock()
	l := t.users[key]
	if l == nil {
		l = &userLock{}
		t.users[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(t.users, key)
		}
		t.mu.Unlock()
	}
}

// SetClock overrides the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Connections returns the live socket count for a user on this node.
func (t *Tracker) Connections(userID string) int {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[db.UUIDToString(id)]
}

func (t *Tracker) statusLocked(key string) string {
	if chosen, ok := t.chosen[key]; ok {
		return chosen
	}
	return StatusOnline
}

func (t *Tracker) Connect(ctx context.Context, userID string) (Presence, error) {
	id, err := parseUser(userID)
	if err != nil {
		return Presence{}, err
	}
	key := db.UUIDToString(id)
	unlock := t.lockUser(key)
	defer unlock()
	t.mu.Lock()
	t.conns[key]++
	first := t.conns[key] == 1
	status := t.statusLocked(key)
	t.mu.Unlock()

	now := t.now().UTC()
	if !first {
		return Presence{UserID: key, Status: status, LastSeenAt: now}, t.touch(ctx, id, now)
	}
	return t.persist(ctx, id, status, now)
}

// Disconnect drops one socket. The last socket leaving marks the user offline.
func (t *Tracker) Disconnect(ctx context.Context, userID string) (Presence, error) {
	id, err := parseUser(userID)
	if err != nil {
		return Presence{}, err
	}
	key := db.UUIDToString(id)
	unlock := t.lockUser(key)
	defer unlock()
	t.mu.Lock()
	count := t.conns[key]
	if count == 0 {
		t.mu.Unlock()
		return Presence{UserID: key, Status: StatusOffline}, nil
	}
	if count > 1 {
		t.conns[key] = count - 1
		status := t.statusLocked(key)
		t.mu.Unlock()
		return Presence{UserID: key, Status: status}, nil
	}
	delete(t.conns, key)
	t.mu.Unlock()
	return t.persist(ctx, id, StatusOffline, t.now().UTC())
}

// SetStatus records an explicit status. Choosing offline while connected hides the user.
func (t *Tracker) SetStatus(ctx context.Context, userID, status string) (Presence, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !ValidStatus(status) {
		return Presence{}, ErrInvalidStatus
	}
	id, err := parseUser(userID)
	if err != nil {
		return Presence{}, err
	}
	key := db.UUIDToString(id)
	unlock := t.lockUser(key)
	defer unlock()
	t.mu.Lock()
	if status == StatusOnline {
		delete(t.chosen, key)
	} else {
		t.chosen[key] = status
	}
	t.mu.Unlock()
	return t.persist(ctx, id, status, t.now().UTC())
}

// Touch refreshes the heartbeat without announcing anything.
func (t *Tracker) Touch(ctx context.Context, userID string) error {
	id, err := parseUser(userID)
	if err != nil {
		return err
	}
	return t.touch(ctx, id, t.now().UTC())
}

func (t *Tracker) touch(ctx context.Context, id pgtype.UUID, now time.Time) error {
	if err := t.queries.TouchPresence(ctx, sqlc.TouchPresenceParams{UserID: id, LastSeenAt: db.Timestamptz(now)}); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, userID string) (Presence, error) {
	items, err := t.GetMany(ctx, []string{userID})
	if err != nil {
		return Presence{}, err
	}
	if len(items) == 0 {
		return Presence{}, ErrInvalidUser
	}
	return items[0], nil
}

// GetMany returns one entry per distinct valid id, in request order. Users without a
// presence row are reported offline.
func (t *Tracker) GetMany(ctx context.Context, userIDs []string) ([]Presence, error) {
	order := make([]string, 0, len(userIDs))
	ids := make([]pgtype.UUID, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, raw := range userIDs {
		id, err := db.ParseUUID(raw)
		if err != nil {
			continue
		}
		key := db.UUIDToString(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		order = append(order, key)
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []Presence{}, nil
	}
	rows, err := t.queries.GetPresenceBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get presence batch: %w", err)
	}
	byUser := make(map[string]sqlc.UserPresence, len(rows))
	for _, row := range rows {
		byUser[db.UUIDToString(row.UserID)] = row
	}
	out := make([]Presence, 0, len(order))
	for _, key := range order {
		row, ok := byUser[key]
		if !ok {
			out = append(out, Presence{UserID: key, Status: StatusOffline})
			continue
		}
		out = append(out, toPresence(row))
	}
	return out, nil
}

// SweepStale marks users whose heartbeat is older than olderThan as offline. Users with
// live sockets on this node are refreshed first so they are never swept here.
func (t *Tracker) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := t.now().UTC()
	t.mu.Lock()
	live := make([]string, 0, len(t.conns))
	for userID := range t.conns {
		live = append(live, userID)
	}
	t.mu.Unlock()
	for _, userID := range live {
		if id, err := db.ParseUUID(userID); err == nil {
			if err := t.touch(ctx, id, now); err != nil {
				return 0, err
			}
		}
	}
	rows, err := t.queries.MarkStalePresenceOffline(ctx, db.Timestamptz(now.Add(-olderThan)))
	if err != nil {
		return 0, fmt.Errorf("sweep stale presence: %w", err)
	}
	for _, row := range rows {
		t.announce(ctx, toPresence(row))
	}
	if len(rows) > 0 {
		t.logger.Info("stale presence swept", slog.Int("count", len(rows)))
	}
	return len(rows), nil
}

func (t *Tracker) persist(ctx context.Context, id pgtype.UUID, status string, now time.Time) (Presence, error) {
	row, err := t.queries.UpsertPresence(ctx, sqlc.UpsertPresenceParams{
		UserID:     id,
		Status:     status,
		LastSeenAt: db.Timestamptz(now),
	})
	if err != nil {
		return Presence{}, fmt.Errorf("upsert presence: %w", err)
	}
	p := toPresence(row)
	t.announce(ctx, p)
	return p, nil
}

// announce publishes to the user and everyone sharing a conversation with them.
func (t *Tracker) announce(ctx context.Context, p Presence) {
	if t.publisher == nil {
		return
	}
	recipients := []string{p.UserID}
	if id, err := db.ParseUUID(p.UserID); err == nil {
		others, err := t.queries.ListCounterpartUserIDs(ctx, id)
		if err != nil {
			t.logger.Warn("list presence audience failed", slog.String("user_id", p.UserID), slog.Any("error", err))
		}
		for _, other := range others {
			recipients = append(recipients, db.UUIDToString(other))
		}
	}
	ev := event.New(event.TypePresenceUpdated, "", p.UserID, p)
	ev.Recipients = recipients
	t.publisher.Publish(ev)
}

func parseUser(userID string) (pgtype.UUID, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return pgtype.UUID{}, ErrInvalidUser
	}
	return id, nil
}

func toPresence(row sqlc.UserPresence) Presence {
	return Presence{
		UserID:     db.UUIDToString(row.UserID),
		Status:     row.Status,
		LastSeenAt: db.TimeFromPg(row.LastSeenAt),
	}
}
