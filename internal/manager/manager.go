// Package manager creates and looks up the channels served by a process.
// Each channel owns its namespaced store, bid state machine and subscriber
// hub; nothing is shared between channels.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bid "bidio/internal/bidService"
	"bidio/internal/channel"
	"bidio/internal/config"
	"bidio/internal/store"
	"bidio/utils"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidChannel = errors.New("manager: invalid channel name")

// StoreFactory hands out the store of a channel namespace.
type StoreFactory interface {
	Store(ctx context.Context, channel string) (*store.Store, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithRecorder reports channel metrics to r.
func WithRecorder(r channel.Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithClock replaces the clock used for period scoping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	cfg      *config.Config
	stores   StoreFactory
	recorder channel.Recorder
	now      func() time.Time

	mu       sync.Mutex // serializes channel creation
	channels *xsync.MapOf[string, *channel.Channel]
}

func New(cfg *config.Config, stores StoreFactory, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Manager{
		cfg:      cfg,
		stores:   stores,
		now:      time.Now,
		channels: xsync.NewMapOf[string, *channel.Channel](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run opens every configured channel.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range m.cfg.ChannelNames() {
		g.Go(func() error {
			_, err := m.SetChannel(ctx, name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	utils.Info("Channels ready", map[string]any{
		"channels": m.Channels(),
	})
	return nil
}

// SetChannel returns the channel name, creating it on first use.
func (m *Manager) SetChannel(ctx context.Context, name string) (*channel.Channel, error) {
	if name == "" {
		return nil, ErrInvalidChannel
	}
	if ch, ok := m.channels.Load(name); ok {
		return ch, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels.Load(name); ok {
		return ch, nil
	}

	s, err := m.stores.Store(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("manager: open store for channel %s: %w", name, err)
	}
	bids := bid.New(s, bid.WithPeriod(m.cfg.Period.Field, m.cfg.Period.Layout, m.now))
	bids.OnEvent(func(ev bid.Event) { logBidEvent(name, ev) })

	ch := channel.New(name, bids,
		channel.WithStream(m.cfg.Stream),
		channel.WithBroadcastErrors(m.cfg.BroadcastErrors),
		channel.WithRecorder(m.recorder),
	)
	ch.OnEvent(logChannelEvent)
	m.channels.Store(name, ch)

	utils.Info("Channel established", map[string]any{
		"channel":   name,
		"namespace": s.Namespace(),
		"stream":    ch.Stream(),
	})
	return ch, nil
}

// GetChannel returns an existing channel.
func (m *Manager) GetChannel(name string) (*channel.Channel, bool) {
	ch, ok := m.channels.Load(name)
	if !ok {
		utils.Debug("Channel does not exist", map[string]any{"channel": name})
	}
	return ch, ok
}

// Channels lists the open channel names in sorted order.
func (m *Manager) Channels() []string {
	names := make([]string, 0, m.channels.Size())
	m.channels.Range(func(name string, _ *channel.Channel) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Close detaches the subscribers of every channel.
func (m *Manager) Close() {
	m.channels.Range(func(name string, ch *channel.Channel) bool {
		ch.Close()
		m.channels.Delete(name)
		return true
	})
}

func logBidEvent(name string, ev bid.Event) {
	if ev.Name == bid.EventError {
		return // reported by the channel with the packet context
	}
	utils.Debug("Bid event", map[string]any{
		"channel": name,
		"event":   string(ev.Name),
		"id":      ev.ID,
		"locked":  ev.Bid.Locked,
		"state":   ev.Bid.State.String(),
	})
}

func logChannelEvent(ev channel.Event) {
	switch ev.Name {
	case channel.EventConnection, channel.EventDisconnect:
		utils.Info("Channel "+string(ev.Name), map[string]any{
			"channel": ev.Channel,
			"conn":    ev.Conn.ID(),
		})
	}
}
