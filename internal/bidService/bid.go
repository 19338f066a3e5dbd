// Package bid implements the bid lifecycle and its ownership-locking
// protocol on top of a store.BidStore. Every transition is a single atomic
// read-modify-write through the store.
package bid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bidio/internal/biderrors"
	"bidio/internal/models"
	"bidio/internal/store"

	"github.com/goccy/go-json"
)

// DefaultPeriodLayout renders the current sale date as MM/DD/YYYY.
const DefaultPeriodLayout = "01/02/2006"

// Bid is the state machine for all bids of one channel
type Bid struct {
	store  store.BidStore
	period *period

	mu        sync.RWMutex
	observers map[int]func(Event)
	next      int
}

type period struct {
	field  string
	layout string
	now    func() time.Time
}

func (p *period) current() string {
	return p.now().Format(p.layout)
}

// Option configures a Bid
type Option func(*Bid)

// WithPeriod scopes Fetch and Find to documents whose field equals the
// current period, rendered from now with layout.
func WithPeriod(field, layout string, now func() time.Time) Option {
	return func(b *Bid) {
		if field == "" {
			return
		}
		if layout == "" {
			layout = DefaultPeriodLayout
		}
		if now == nil {
			now = time.Now
		}
		b.period = &period{field: field, layout: layout, now: now}
	}
}

// New creates a Bid over s.
func New(s store.BidStore, opts ...Option) *Bid {
	b := &Bid{
		store:     s,
		observers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Period returns the current period key, or "" when unscoped.
func (b *Bid) Period() string {
	if b.period == nil {
		return ""
	}
	return b.period.current()
}

// Set writes data under id with the default bid fields filled in. It does
// not enforce lock ownership and is meant for administrative callers.
func (b *Bid) Set(ctx context.Context, id int64, data models.Doc) (models.Bid, error) {
	if id <= 0 {
		return models.Bid{}, fmt.Errorf("bid: set: %w", biderrors.ErrMissingID)
	}
	doc, err := b.store.Set(ctx, id, models.DefaultDoc(id, data), store.SetFlag{})
	if err != nil {
		return models.Bid{}, b.fail("set", id, err)
	}
	return b.saved("set", id, doc)
}

// Get reads the bid stored under id.
func (b *Bid) Get(ctx context.Context, id int64) (models.Bid, error) {
	if id <= 0 {
		return models.Bid{}, b.fail("get", id, biderrors.ErrMissingID)
	}
	doc, err := b.store.Get(ctx, id)
	if err != nil {
		return models.Bid{}, b.fail("get", id, err)
	}
	if doc == nil {
		return models.Bid{}, b.fail("get", id, biderrors.ErrBidNotFound)
	}
	return b.parse("get", id, doc)
}

// Fetch is Get restricted to the current period when one is configured; a
// bid from another period is reported as not found.
func (b *Bid) Fetch(ctx context.Context, id int64) (models.Bid, error) {
	if b.period == nil {
		bid, err := b.Get(ctx, id)
		if err == nil {
			b.emit(Event{Name: EventFetch, ID: id, Bid: bid})
		}
		return bid, err
	}
	if id <= 0 {
		return models.Bid{}, b.fail("fetch", id, biderrors.ErrMissingID)
	}

	docs, err := b.store.Find(ctx, store.QueryID(id).With(b.period.field, b.period.current()))
	if err != nil {
		return models.Bid{}, b.fail("fetch", id, err)
	}
	if len(docs) == 0 {
		return models.Bid{}, b.fail("fetch", id, biderrors.ErrBidNotFound)
	}
	bid, err := b.parse("fetch", id, docs[0])
	if err != nil {
		return models.Bid{}, err
	}
	b.emit(Event{Name: EventFetch, ID: id, Bid: bid})
	return bid, nil
}

// Result is the answer to Find: one bid for lookups by id alone, a list
// otherwise.
type Result struct {
	Bids   []models.Bid
	Single bool
}

// First returns the first bid of r, if any.
func (r Result) First() (models.Bid, bool) {
	if len(r.Bids) == 0 {
		return models.Bid{}, false
	}
	return r.Bids[0], true
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Single {
		first, ok := r.First()
		if !ok {
			return []byte("null"), nil
		}
		return json.Marshal(first)
	}
	if r.Bids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Bids)
}

// Find runs q against the store, adding the current-period constraint to
// every query except the whole-namespace one.
func (b *Bid) Find(ctx context.Context, q store.Query) (Result, error) {
	if b.period != nil {
		q = q.With(b.period.field, b.period.current())
	}
	docs, err := b.store.Find(ctx, q)
	if err != nil {
		id, _ := q.ID()
		return Result{}, b.fail("find", id, err)
	}

	res := Result{Single: q.Single, Bids: make([]models.Bid, 0, len(docs))}
	for _, doc := range docs {
		bid, err := models.BidFromDoc(doc)
		if err != nil {
			return Result{}, b.fail("find", 0, err)
		}
		res.Bids = append(res.Bids, bid)
	}
	return res, nil
}

// Lock gives owner exclusive hold of the bid. With force any existing
// holder is displaced.
func (b *Bid) Lock(ctx context.Context, id int64, owner models.Owner, force bool) (models.Bid, error) {
	actor, ok := owner.ID()
	if !ok {
		return models.Bid{}, b.fail("lock", id, biderrors.ErrMissingOwner)
	}
	return b.transition(ctx, "lock", EventLock, id, func(cur models.Doc) (models.Doc, error) {
		if cur != nil && force {
			cur[models.FieldLocked] = false
		}
		bid, err := check(cur, actor, true)
		if err != nil {
			return nil, err
		}
		bid.Locked = true
		bid.Owner = owner.Clone()
		bid.Record(owner)
		return bid.Doc(), nil
	})
}

// Claim locks the bid for owner regardless of the current holder.
func (b *Bid) Claim(ctx context.Context, id int64, owner models.Owner) (models.Bid, error) {
	return b.Lock(ctx, id, owner, true)
}

// Unlock releases the hold on the bid. Only the holder may release it
// unless force is set or no acting owner is given.
func (b *Bid) Unlock(ctx context.Context, id int64, owner models.Owner, force bool) (models.Bid, error) {
	actor, hasActor := owner.ID()
	return b.transition(ctx, "unlock", EventUnlock, id, func(cur models.Doc) (models.Doc, error) {
		bid, err := check(cur, "", false)
		if err != nil {
			return nil, err
		}
		if !bid.Locked && !force {
			return nil, biderrors.ErrBidNotLocked
		}
		if !force && hasActor && bid.HeldByOther(actor) {
			return nil, biderrors.Locked(bid.Owner)
		}
		bid.Locked = false
		bid.Owner = nil
		if hasActor {
			bid.Record(owner)
		}
		return bid.Doc(), nil
	})
}

// ForceUnlock releases the bid whoever holds it.
func (b *Bid) ForceUnlock(ctx context.Context, id int64, owner models.Owner) (models.Bid, error) {
	return b.Unlock(ctx, id, owner, true)
}

// Pending moves the bid to the pending stage and releases its lock so
// another party may claim it.
func (b *Bid) Pending(ctx context.Context, id int64, owner models.Owner) (models.Bid, error) {
	actor, hasActor := owner.ID()
	return b.transition(ctx, "pending", EventPending, id, func(cur models.Doc) (models.Doc, error) {
		bid, err := check(cur, actor, hasActor)
		if err != nil {
			return nil, err
		}
		bid.State = models.StatePending
		bid.Locked = false
		bid.Owner = nil
		if hasActor {
			bid.Record(owner)
		}
		return bid.Doc(), nil
	})
}

// Complete finishes the bid, leaving it locked by owner for good. Without
// an owner the current holder completes it.
func (b *Bid) Complete(ctx context.Context, id int64, owner models.Owner) (models.Bid, error) {
	actor, hasActor := owner.ID()
	return b.transition(ctx, "complete", EventComplete, id, func(cur models.Doc) (models.Doc, error) {
		bid, err := check(cur, actor, hasActor)
		if err != nil {
			return nil, err
		}
		holder := owner
		if !hasActor {
			if _, ok := bid.OwnerID(); !ok {
				return nil, biderrors.ErrMissingOwner
			}
			holder = bid.Owner
		}
		bid.State = models.StateComplete
		bid.Locked = true
		bid.Owner = holder.Clone()
		bid.Record(holder)
		return bid.Doc(), nil
	})
}

// Update merges data into the bid. Protected fields (lock, state, owners
// and the store's immutable fields) are dropped unless force is set; lock
// ownership is not consulted.
func (b *Bid) Update(ctx context.Context, id int64, data models.Doc, force bool) (models.Bid, error) {
	if id <= 0 {
		return models.Bid{}, b.fail("update", id, biderrors.ErrMissingID)
	}
	doc, err := b.store.Set(ctx, id, data, store.SetFlag{
		Update:   true,
		Force:    force,
		Defaults: models.DefaultDoc(id, nil),
	})
	if err != nil {
		return models.Bid{}, b.fail("update", id, err)
	}
	bid, err := b.saved("update", id, doc)
	if err != nil {
		return models.Bid{}, err
	}
	b.emit(Event{Name: EventUpdate, ID: id, Bid: bid})
	return bid, nil
}

// Delete removes the bid.
func (b *Bid) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return b.fail("delete", id, biderrors.ErrMissingID)
	}
	if err := b.store.Del(ctx, id); err != nil {
		return b.fail("delete", id, err)
	}
	return nil
}

// Clear wipes every bid of the channel.
func (b *Bid) Clear(ctx context.Context) error {
	if err := b.store.Clear(ctx); err != nil {
		return fmt.Errorf("bid: clear: %w", err)
	}
	return nil
}

func (b *Bid) transition(ctx context.Context, op string, name EventName, id int64, fn store.ModifyFunc) (models.Bid, error) {
	if id <= 0 {
		return models.Bid{}, b.fail(op, id, biderrors.ErrMissingID)
	}
	doc, err := b.store.Modify(ctx, id, fn)
	if err != nil {
		return models.Bid{}, b.fail(op, id, err)
	}
	bid, err := b.saved(op, id, doc)
	if err != nil {
		return models.Bid{}, err
	}
	b.emit(Event{Name: name, ID: id, Bid: bid})
	return bid, nil
}

// check applies the guards shared by every transition: the bid must exist,
// must not be complete, must be in a known state and, when an acting owner
// is given, must not be held by someone else.
func check(doc models.Doc, actor models.OwnerID, hasActor bool) (models.Bid, error) {
	if doc == nil {
		return models.Bid{}, biderrors.ErrBidNotFound
	}
	bid, err := models.BidFromDoc(doc)
	if err != nil {
		return models.Bid{}, err
	}
	if bid.State == models.StateComplete {
		return models.Bid{}, biderrors.ErrBidCompleted
	}
	if !bid.State.Valid() {
		return models.Bid{}, biderrors.ErrUnknownState
	}
	if hasActor && bid.HeldByOther(actor) {
		return models.Bid{}, biderrors.Locked(bid.Owner)
	}
	return bid, nil
}

// saved turns a write that produced no document into ErrSaveFailed.
func (b *Bid) saved(op string, id int64, doc models.Doc) (models.Bid, error) {
	if doc == nil {
		return models.Bid{}, b.fail(op, id, biderrors.ErrSaveFailed)
	}
	return b.parse(op, id, doc)
}

func (b *Bid) parse(op string, id int64, doc models.Doc) (models.Bid, error) {
	bid, err := models.BidFromDoc(doc)
	if err != nil {
		return models.Bid{}, b.fail(op, id, err)
	}
	return bid, nil
}

// fail wraps err with the operation and reports it to observers.
func (b *Bid) fail(op string, id int64, err error) error {
	wrapped := fmt.Errorf("bid: %s %d: %w", op, id, err)
	b.emit(Event{Name: EventError, ID: id, Err: wrapped})
	return wrapped
}
