// Package gateway serves the chat WebSocket: authentication, conversation rooms,
// typing indicators and relay of bus events to connected sockets.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tellerdesk/tellerdesk/internal/auth"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/message"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/presence"
)

const (
	DefaultSendBuffer    = 64
	DefaultPongWait      = 60 * time.Second
	DefaultWriteWait     = 10 * time.Second
	DefaultTypingTTL     = 6 * time.Second
	DefaultTouchInterval = 30 * time.Second
	DefaultMaxFrameBytes = 64 << 10
	busBuffer            = 1024
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	SendBuffer     int
	PongWait       time.Duration
	WriteWait      time.Duration
	TypingTTL      time.Duration
	TouchInterval  time.Duration
	MaxFrameBytes  int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = DefaultTypingTTL
	}
	if o.TouchInterval <= 0 {
		o.TouchInterval = DefaultTouchInterval
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = DefaultMaxFrameBytes
	}
	return o
}

// PingPeriod must stay below PongWait so a healthy peer never times out.
func (o Options) PingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

type Presence interface {
	Connect(ctx context.Context, userID string) (presence.Presence, error)
	Disconnect(ctx context.Context, userID string) (presence.Presence, error)
	SetStatus(ctx context.Context, userID, status string) (presence.Presence, error)
	Touch(ctx context.Context, userID string) error
}

type Gateway struct {
	access    conversation.Accessor
	messages  message.Store
	presence  Presence
	bus       event.Subscriber
	publisher event.Publisher
	logger    *slog.Logger
	opts      Options
	upgrader  websocket.Upgrader
	typing    *typingTracker
	stopBus   func()
	stopOnce  sync.Once

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func New(log *slog.Logger, access conversation.Accessor, messages message.Store, presenceSvc Presence, bus event.Subscriber, publisher event.Publisher, opts Options) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	g := &Gateway{
		access:    access,
		messages:  messages,
		presence:  presenceSvc,
		bus:       bus,
		publisher: publisher,
		logger:    log.With(slog.String("service", "gateway")),
		opts:      opts,
		clients:   map[string]map[*Client]struct{}{},
		rooms:     map[string]map[*Client]struct{}{},
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	g.typing = newTypingTracker(opts.TypingTTL, g.publishTyping)
	return g
}

// originChecker returns nil, which keeps gorilla's same-host check, when no origins are configured.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			set[o] = struct{}{}
		}
	}
	if _, wildcard := set["*"]; wildcard {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Start subscribes to the bus and relays events to sockets in the background.
func (g *Gateway) Start() {
	_, events, cancel := g.bus.Subscribe("", busBuffer)
	g.stopBus = cancel
	go func() {
		for ev := range events {
			g.route(ev)
		}
	}()
}

// Stop ends the relay, clears typing flags and drops every socket.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		if g.stopBus != nil {
			g.stopBus()
		}
		g.typing.StopAll()
		g.Close()
	})
}

// ServeHTTP authenticates the bearer token, upgrades the connection and blocks until the socket closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseToken(auth.TokenFromRequest(r), g.opts.JWTSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("socket upgrade failed", slog.Any("error", err))
		return
	}
	ctx := context.WithoutCancel(r.Context())
	c := newClient(g, conn, claims.UserID)
	g.register(c)
	if _, err := g.presence.Connect(ctx, c.userID); err != nil {
		g.logger.Warn("presence connect failed", slog.String("user_id", c.userID), slog.Any("error", err))
	}
	c.lastTouch = time.Now()
	g.logger.Info("socket connected", slog.String("user_id", c.userID), slog.String("client_id", c.id))

	go c.writePump()
	c.readPump(ctx)

	g.unregister(c)
	if _, err := g.presence.Disconnect(ctx, c.userID); err != nil {
		g.logger.Warn("presence disconnect failed", slog.String("user_id", c.userID), slog.Any("error", err))
	}
	g.logger.Info("socket disconnected", slog.String("user_id", c.userID), slog.String("client_id", c.id))
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clients[c.userID] == nil {
		g.clients[c.userID] = map[*Client]struct{}{}
	}
	g.clients[c.userID][c] = struct{}{}
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
		g.leaveLocked(c, room)
	}
	if set := g.clients[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(g.clients, c.userID)
		}
	}
	g.mu.Unlock()
	for _, room := range rooms {
		if !g.userInRoom(c.userID, room) {
			g.typing.Stop(room, c.userID)
		}
	}
}

func (g *Gateway) joinLocked(c *Client, room string) {
	if g.rooms[room] == nil {
		g.rooms[room] = map[*Client]struct{}{}
	}
	g.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (g *Gateway) leaveLocked(c *Client, room string) {
	if set := g.rooms[room]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(g.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (g *Gateway) joined(c *Client, room string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

func (g *Gateway) userInRoom(userID, room string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.rooms[room] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// Close drops every socket on this node.
func (g *Gateway) Close() {
	g.mu.RLock()
	var all []*Client
	for _, set := range g.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	g.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
}

// Connections reports how many sockets a user has open on this node.
func (g *Gateway) Connections(userID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients[userID])
}

// RoomSize reports how many sockets are joined to a conversation on this node.
func (g *Gateway) RoomSize(conversationID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms[conversationID])
}

func (g *Gateway) route(ev event.Event) {
	frame := encode(Frame{Type: string(ev.Type), ConversationID: ev.ConversationID, Data: ev.Data})
	if frame == nil {
		return
	}
	var targets []*Client
	g.mu.Lock()
	switch {
	case ev.Type == event.TypeNotificationCreated:
		targets = g.userClientsLocked(ev.UserID, nil)
	case ev.Type == event.TypePresenceUpdated:
		for _, uid := range ev.Recipients {
			targets = g.userClientsLocked(uid, targets)
		}
	case ev.IsRoomEvent():
		room := g.rooms[ev.ConversationID]
		for c := range room {
			if ev.Type == event.TypeTyping && c.userID == ev.UserID {
				continue
			}
			targets = append(targets, c)
		}
		switch ev.Type {
		case event.TypeParticipantAdded:
			// The new participant has not joined the room yet.
			for c := range g.clients[ev.UserID] {
				if _, in := room[c]; !in {
					targets = append(targets, c)
				}
			}
		case event.TypeParticipantRemoved:
			for c := range g.clients[ev.UserID] {
				if _, in := room[c]; !in {
					targets = append(targets, c)
				}
				g.leaveLocked(c, ev.ConversationID)
			}
		}
	}
	g.mu.Unlock()
	if ev.Type == event.TypeParticipantRemoved {
		g.typing.Stop(ev.ConversationID, ev.UserID)
	}
	for _, c := range targets {
		c.enqueue(frame)
	}
}

func (g *Gateway) userClientsLocked(userID string, into []*Client) []*Client {
	for c := range g.clients[userID] {
		into = append(into, c)
	}
	return into
}

func (g *Gateway) publishTyping(conversationID, userID string, typing bool) {
	if g.publisher == nil {
		return
	}
	g.publisher.Publish(event.New(event.TypeTyping, conversationID, userID, TypingState{
		ConversationID: conversationID,
		UserID:         userID,
		Typing:         typing,
	}))
}

func (g *Gateway) handleFrame(ctx context.Context, c *Client, frame Frame) {
	var (
		reply any
		err   error
	)
	switch frame.Type {
	case FramePing:
		c.enqueue(encode(Frame{Type: FramePong, ID: frame.ID}))
		return
	case FrameJoin:
		reply, err = g.handleJoin(ctx, c, frame)
	case FrameLeave:
		reply, err = g.handleLeave(c, frame)
	case FrameTyping:
		reply, err = g.handleTyping(ctx, c, frame)
	case FrameSend:
		reply, err = g.handleSend(ctx, c, frame)
	case FrameRead:
		reply, err = g.handleRead(ctx, c, frame)
	case FramePresenceSet:
		reply, err = g.handlePresence(ctx, c, frame)
	default:
		err = errUnknownType
	}
	if err != nil {
		if errorCode(err) == codeInternal {
			g.logger.Error("socket frame failed", slog.String("type", frame.Type), slog.String("user_id", c.userID), slog.Any("error", err))
		}
		c.enqueue(errorFrame(frame.ID, err))
		return
	}
	c.enqueue(ackFrame(frame.ID, reply))
}

func decodeData(frame Frame, into any) error {
	if len(frame.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(frame.Data, into); err != nil {
		return errBadFrame
	}
	return nil
}

// roomOf prefers the conversation inside data and falls back to the envelope field.
func roomOf(frame Frame, fromData string) (string, error) {
	room := strings.TrimSpace(fromData)
	if room == "" {
		room = strings.TrimSpace(frame.ConversationID)
	}
	if room == "" {
		return "", errBadFrame
	}
	return room, nil
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, frame Frame) (any, error) {
	var req roomRequest
	if err := decodeData(frame, &req); err != nil {
		return nil, err
	}
	room, err := roomOf(frame, req.ConversationID)
	if err != nil {
		return nil, err
	}
	access, err := g.access.Access(ctx, c.userID, room)
	if err != nil {
		return nil, err
	}
	if !access.Capabilities.CanRead {
		return nil, conversation.ErrPermissionDenied
	}
	room = access.Conversation.ID
	g.mu.Lock()
	g.joinLocked(c, room)
	g.mu.Unlock()
	return JoinAck{ConversationID: room, Capabilities: access.Capabilities}, nil
}

func (g *Gateway) handleLeave(c *Client, frame Frame) (any, error) {
	var req roomRequest
	if err := decodeData(frame, &req); err != nil {
		return nil, err
	}
	room, err := roomOf(frame, req.ConversationID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.leaveLocked(c, room)
	g.mu.Unlock()
	if !g.userInRoom(c.userID, room) {
		g.typing.Stop(room, c.userID)
	}
	return roomRequest{ConversationID: room}, nil
}

func (g *Gateway) handleTyping(ctx context.Context, c *Client, frame Frame) (any, error) {
	var req typingRequest
	if err := decodeData(frame, &req); err != nil {
		return nil, err
	}
	room, err := roomOf(frame, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if !g.joined(c, room) {
		return nil, errNotJoined
	}
	typing := req.Typing == nil || *req.Typing
	if !typing {
		g.typing.Stop(room, c.userID)
		return TypingState{ConversationID: room, UserID: c.userID}, nil
	}
	access, err := g.access.Access(ctx, c.userID, room)
	if err != nil {
		return nil, err
	}
	if !access.Capabilities.CanPost {
		return nil, conversation.ErrPermissionDenied
	}
	g.typing.Start(room, c.userID)
	return TypingState{ConversationID: room, UserID: c.userID, Typing: true}, nil
}

func (g *Gateway) handleSend(ctx context.Context, c *Client, frame Frame) (any, error) {
	var input message.SendInput
	if err := decodeData(frame, &input); err != nil {
		return nil, err
	}
	room, err := roomOf(frame, input.ConversationID)
	if err != nil {
		return nil, err
	}
	input.ConversationID = room
	msg, err := g.messages.Send(ctx, c.userID, input)
	if err != nil {
		return nil, err
	}
	g.typing.Stop(msg.ConversationID, c.userID)
	return msg, nil
}

func (g *Gateway) handleRead(ctx context.Context, c *Client, frame Frame) (any, error) {
	var req readRequest
	if err := decodeData(frame, &req); err != nil {
		return nil, err
	}
	room, err := roomOf(frame, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UpToMessageID) == "" {
		return nil, errBadFrame
	}
	return g.messages.MarkRead(ctx, c.userID, room, req.UpToMessageID)
}

func (g *Gateway) handlePresence(ctx context.Context, c *Client, frame Frame) (any, error) {
	var req presenceRequest
	if err := decodeData(frame, &req); err != nil {
		return nil, err
	}
	return g.presence.SetStatus(ctx, c.userID, strings.ToLower(strings.TrimSpace(req.Status)))
}
