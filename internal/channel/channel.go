// Package channel binds one named bid channel to its subscribers: it decodes
// inbound packets, dispatches them to the bid state machine and fans the
// encoded outcome out to every party attached to the channel.
package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bidio/internal/biderrors"
	"bidio/internal/models"
	"bidio/internal/packet"
	"bidio/internal/store"
	"bidio/utils"

	"github.com/goccy/go-json"
)

// DefaultStream is the name of the operation stream inside a channel.
const DefaultStream = "stream"

// Operation outcomes reported to a Recorder
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder receives per-operation measurements.
type Recorder interface {
	ObserveOperation(channel string, t packet.Type, outcome string, elapsed time.Duration)
	SetSubscribers(channel string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, packet.Type, string, time.Duration) {}
func (nopRecorder) SetSubscribers(string, int)                                 {}

// Request is the payload of an inbound operation packet.
type Request struct {
	Owner  models.Owner    `json:"owner,omitempty"`
	Query  json.RawMessage `json:"query,omitempty"`
	Update models.Doc      `json:"update,omitempty"`
	Force  bool            `json:"force,omitempty"`
}

// EventName names a channel event
type EventName string

const (
	EventConnection EventName = "connection"
	EventDisconnect EventName = "disconnect"
	EventStream     EventName = "stream"
	EventError      EventName = "error"
)

// Event is reported to channel observers. Packet is the outbound packet for
// stream and error events.
type Event struct {
	Name    EventName
	Channel string
	Conn    Conn
	Packet  packet.Packet
	Err     error
}

// Channel dispatches the operation stream of one channel name.
type Channel struct {
	name            string
	stream          string
	bids            BidService
	hub             *Hub
	recorder        Recorder
	broadcastErrors bool

	mu        sync.RWMutex
	observers map[int]func(Event)
	next      int
}

// Option configures a Channel
type Option func(*Channel)

// WithStream renames the operation stream.
func WithStream(name string) Option {
	return func(c *Channel) {
		if name != "" {
			c.stream = name
		}
	}
}

// WithBroadcastErrors makes error packets reach every subscriber instead of
// only the requester.
func WithBroadcastErrors(on bool) Option {
	return func(c *Channel) { c.broadcastErrors = on }
}

// WithRecorder reports operation metrics to r.
func WithRecorder(r Recorder) Option {
	return func(c *Channel) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithHub replaces the default subscriber hub.
func WithHub(h *Hub) Option {
	return func(c *Channel) {
		if h != nil {
			c.hub = h
		}
	}
}

// New creates the channel name over bids.
func New(name string, bids BidService, opts ...Option) *Channel {
	c := &Channel{
		name:      name,
		stream:    DefaultStream,
		bids:      bids,
		hub:       NewHub(DefaultBuffer),
		recorder:  nopRecorder{},
		observers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Name() string   { return c.name }
func (c *Channel) Stream() string { return c.stream }

// Bids exposes the state machine for administrative calls.
func (c *Channel) Bids() BidService { return c.bids }

// Subscribers is the number of attached connections.
func (c *Channel) Subscribers() int { return c.hub.Len() }

// Connect attaches conn and returns its feed of encoded packets together
// with the function that detaches it.
func (c *Channel) Connect(conn Conn) (<-chan string, func()) {
	feed, unsubscribe := c.hub.Subscribe(conn.ID())
	c.recorder.SetSubscribers(c.name, c.hub.Len())
	utils.Debug("Incoming connection", map[string]any{
		"channel": c.name,
		"conn":    conn.ID(),
	})
	c.emit(Event{Name: EventConnection, Conn: conn})

	var once sync.Once
	return feed, func() {
		once.Do(func() {
			unsubscribe()
			c.recorder.SetSubscribers(c.name, c.hub.Len())
			c.emit(Event{Name: EventDisconnect, Conn: conn})
		})
	}
}

// Broadcast sends an already encoded packet to every subscriber.
func (c *Channel) Broadcast(msg string) int {
	return c.hub.Publish(msg, "")
}

// Close detaches every subscriber.
func (c *Channel) Close() {
	c.hub.Close()
	c.recorder.SetSubscribers(c.name, 0)
}

// Handle processes one raw packet from conn and returns the encoded reply
// for it. Successful outcomes are also broadcast to the other subscribers,
// or to all of them when conn is the server origin.
func (c *Channel) Handle(ctx context.Context, conn Conn, raw string) string {
	if conn == nil {
		conn = ServerConn
	}
	start := time.Now()

	p, err := packet.Decode(raw)
	if err != nil {
		return c.reject(conn, p, p, err, start)
	}
	utils.Debug("Got packet", map[string]any{
		"channel": c.name,
		"conn":    conn.ID(),
		"type":    p.Type.String(),
		"id":      p.ID,
	})

	var req Request
	if err := p.Bind(&req); err != nil {
		return c.fail(conn, p, fmt.Errorf("channel: %w: %v", biderrors.ErrParser, err), start)
	}

	result, err := c.dispatch(ctx, conn, p, req)
	if err != nil {
		return c.fail(conn, p, err, start)
	}

	out, err := packet.New(p.Type, p.ID, result)
	if err != nil {
		return c.fail(conn, p, err, start)
	}
	msg, err := packet.Encode(out)
	if err != nil {
		return c.fail(conn, p, err, start)
	}

	c.deliver(conn, msg)
	c.recorder.ObserveOperation(c.name, p.Type, OutcomeOK, time.Since(start))
	c.emit(Event{Name: EventStream, Conn: conn, Packet: out})
	return msg
}

// dispatch routes p to the bid operation its type names.
func (c *Channel) dispatch(ctx context.Context, conn Conn, p packet.Packet, req Request) (any, error) {
	var id int64
	if p.ID != nil {
		id = *p.ID
	}
	owner := resolveOwner(conn, req)

	switch p.Type {
	case packet.Fetch:
		return c.bids.Fetch(ctx, id)
	case packet.Query:
		q, err := parseQuery(p, req)
		if err != nil {
			return nil, err
		}
		return c.bids.Find(ctx, q)
	case packet.Lock:
		return c.bids.Lock(ctx, id, owner, false)
	case packet.Unlock:
		return c.bids.Unlock(ctx, id, owner, false)
	case packet.Pending:
		return c.bids.Pending(ctx, id, owner)
	case packet.Complete:
		return c.bids.Complete(ctx, id, owner)
	case packet.Claim:
		return c.bids.Claim(ctx, id, owner)
	case packet.ForceUnlock:
		return c.bids.ForceUnlock(ctx, id, owner)
	case packet.Update:
		return c.bids.Update(ctx, id, req.Update, req.Force && IsServer(conn))
	default:
		return nil, fmt.Errorf("channel: %s packet: %w", p.Type, biderrors.ErrInvalidMethod)
	}
}

// parseQuery falls back to the packet id when the payload carries no query.
func parseQuery(p packet.Packet, req Request) (store.Query, error) {
	if len(req.Query) == 0 && p.ID != nil {
		return store.QueryID(*p.ID), nil
	}
	return store.ParseQuery(req.Query)
}

// resolveOwner prefers the owner named in the payload and falls back to the
// identity the transport authenticated.
func resolveOwner(conn Conn, req Request) models.Owner {
	if req.Owner != nil {
		return req.Owner
	}
	user := conn.User()
	if _, ok := user.ID(); !ok {
		return nil
	}
	owner := models.Owner{models.FieldID: user[models.FieldID]}
	for _, k := range []string{"name", "color"} {
		if v, ok := user[k]; ok {
			owner[k] = v
		}
	}
	return owner
}

// fail answers p with an error packet carrying the normalized err.
func (c *Channel) fail(conn Conn, p packet.Packet, err error, start time.Time) string {
	out, encErr := packet.New(packet.Error, p.ID, biderrors.Normalize(err))
	if encErr != nil {
		out = packet.ParserError()
	}
	return c.reject(conn, p, out, err, start)
}

func (c *Channel) reject(conn Conn, in, out packet.Packet, err error, start time.Time) string {
	msg, encErr := packet.Encode(out)
	if encErr != nil {
		msg = packet.EncodedParserError
	}
	utils.Warn("Bid operation failed", map[string]any{
		"channel": c.name,
		"conn":    conn.ID(),
		"type":    in.Type.String(),
		"code":    biderrors.Code(err),
		"error":   err.Error(),
	})
	if c.broadcastErrors {
		c.deliver(conn, msg)
	}
	c.recorder.ObserveOperation(c.name, in.Type, OutcomeError, time.Since(start))
	c.emit(Event{Name: EventError, Conn: conn, Packet: out, Err: err})
	return msg
}

func (c *Channel) deliver(conn Conn, msg string) {
	if IsServer(conn) {
		c.hub.Publish(msg, "")
		return
	}
	c.hub.Publish(msg, conn.ID())
}

// OnEvent registers fn for channel events and returns a function removing
// it.
func (c *Channel) OnEvent(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	key := c.next
	c.observers[key] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, key)
	}
}

func (c *Channel) emit(ev Event) {
	ev.Channel = c.name
	c.mu.RLock()
	keys := make([]int, 0, len(c.observers))
	for k := range c.observers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, c.observers[k])
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
