package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"bidio/internal/models"

	"github.com/cockroachdb/pebble"
	"github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v3"
)

// PebbleBackend keeps one namespace of documents in a shared pebble
// database under the key prefix "<namespace>\x00".
type PebbleBackend struct {
	db     *pebble.DB
	prefix []byte

	// clearing excludes writers while the namespace range is dropped;
	// locks holds one single-slot semaphore per document, serializing its
	// writers while letting a waiter give up when its context ends.
	clearing sync.RWMutex
	locks    *xsync.MapOf[int64, chan struct{}]
}

// OpenPebble opens (or creates) the pebble database at path.
func OpenPebble(path string) (*pebble.DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open pebble %s: %w", path, err)
	}
	return db, nil
}

// NewPebbleBackend binds namespace inside db.
func NewPebbleBackend(db *pebble.DB, namespace string) *PebbleBackend {
	return &PebbleBackend{
		db:     db,
		prefix: append([]byte(namespace), 0),
		locks:  xsync.NewMapOf[int64, chan struct{}](),
	}
}

var pebbleWrite = pebble.Sync

// lock takes the write slot of id, or fails once ctx is done.
func (p *PebbleBackend) lock(ctx context.Context, id int64) (unlock func(), err error) {
	slot, _ := p.locks.LoadOrCompute(id, func() chan struct{} { return make(chan struct{}, 1) })
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *PebbleBackend) key(id int64) []byte {
	k := make([]byte, len(p.prefix)+8)
	copy(k, p.prefix)
	binary.BigEndian.PutUint64(k[len(p.prefix):], uint64(id))
	return k
}

func (p *PebbleBackend) bounds() (lower, upper []byte) {
	lower = append([]byte(nil), p.prefix...)
	upper = append([]byte(nil), p.prefix...)
	upper[len(upper)-1] = 1
	return lower, upper
}

func (p *PebbleBackend) read(id int64) (models.Doc, error) {
	val, closer, err := p.db.Get(p.key(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var doc models.Doc
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, fmt.Errorf("decode bid %d: %w", id, err)
	}
	return doc, nil
}

func (p *PebbleBackend) Get(ctx context.Context, id int64) (models.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.read(id)
}

func (p *PebbleBackend) Modify(ctx context.Context, id int64, fn ModifyFunc) (models.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.clearing.RLock()
	defer p.clearing.RUnlock()

	unlock, err := p.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := p.read(id)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode bid %d: %w", id, err)
	}
	if err := p.db.Set(p.key(id), raw, pebbleWrite); err != nil {
		return nil, err
	}
	return next, nil
}

func (p *PebbleBackend) List(ctx context.Context) ([]models.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower, upper := p.bounds()
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var docs []models.Doc
	for iter.First(); iter.Valid(); iter.Next() {
		var doc models.Doc
		if err := json.Unmarshal(iter.Value(), &doc); err != nil {
			return nil, fmt.Errorf("decode bid at %x: %w", iter.Key(), err)
		}
		docs = append(docs, doc)
	}
	return docs, iter.Error()
}

func (p *PebbleBackend) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.clearing.RLock()
	defer p.clearing.RUnlock()

	unlock, err := p.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return p.db.Delete(p.key(id), pebbleWrite)
}

func (p *PebbleBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.clearing.Lock()
	defer p.clearing.Unlock()
	lower, upper := p.bounds()
	return p.db.DeleteRange(lower, upper, pebbleWrite)
}
