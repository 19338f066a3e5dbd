// Package store persists bid documents for one channel namespace. Backends
// only provide storage primitives; Store layers the merge, query-match and
// field-protection policy on top so every backend behaves the same.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bidio/internal/biderrors"
	"bidio/internal/models"
)

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store

// ModifyFunc computes the next version of a document from the stored one
// (nil when absent). Returning an error or a nil document aborts the write.
type ModifyFunc func(current models.Doc) (models.Doc, error)

// Backend is the storage primitive set a persistence engine must provide
// for a single namespace. Modify must be atomic per document.
type Backend interface {
	Get(ctx context.Context, id int64) (models.Doc, error)
	Modify(ctx context.Context, id int64, fn ModifyFunc) (models.Doc, error)
	List(ctx context.Context) ([]models.Doc, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

// BidStore is the capability the bid state machine is built on
type BidStore interface {
	Get(ctx context.Context, id int64) (models.Doc, error)
	Set(ctx context.Context, id int64, doc models.Doc, flag SetFlag) (models.Doc, error)
	Modify(ctx context.Context, id int64, fn ModifyFunc) (models.Doc, error)
	Find(ctx context.Context, q Query) ([]models.Doc, error)
	Del(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

var _ BidStore = (*Store)(nil)

// Options configure a Store
type Options struct {
	Namespace string
	Timeout   time.Duration // zero disables the bound
	Immutable []string      // extra fields protected from unforced updates
}

// Store applies bid persistence policy over a Backend
type Store struct {
	backend   Backend
	namespace string
	timeout   time.Duration
	protected map[string]bool
}

// New wraps backend with the shared policy.
func New(backend Backend, opts Options) *Store {
	protected := map[string]bool{
		models.FieldLocked: true,
		models.FieldState:  true,
		models.FieldOwner:  true,
		models.FieldOwners: true,
	}
	for _, f := range opts.Immutable {
		protected[f] = true
	}
	return &Store{
		backend:   backend,
		namespace: opts.Namespace,
		timeout:   opts.Timeout,
		protected: protected,
	}
}

// Namespace is the document namespace this store writes to.
func (s *Store) Namespace() string {
	return s.namespace
}

// Protected reports whether field is dropped from unforced updates.
func (s *Store) Protected(field string) bool {
	return s.protected[field]
}

// Get returns the document stored under id, or nil when there is none.
func (s *Store) Get(ctx context.Context, id int64) (models.Doc, error) {
	var doc models.Doc
	err := s.call(ctx, "get", func(ctx context.Context) (err error) {
		doc, err = s.backend.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: get %d: %w", id, err)
	}
	return doc, nil
}

// Set inserts doc when id is not stored yet, otherwise merges it field by
// field into the stored document according to flag.
func (s *Store) Set(ctx context.Context, id int64, doc models.Doc, flag SetFlag) (models.Doc, error) {
	partial, err := models.NormalizeDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("store: set %d: %w", id, err)
	}
	if partial == nil {
		partial = models.Doc{}
	}
	defaults, err := models.NormalizeDoc(flag.Defaults)
	if err != nil {
		return nil, fmt.Errorf("store: set %d defaults: %w", id, err)
	}

	var out models.Doc
	err = s.call(ctx, "set", func(ctx context.Context) (err error) {
		out, err = s.backend.Modify(ctx, id, func(current models.Doc) (models.Doc, error) {
			if current == nil {
				doc := Insert(defaults, partial, flag, s.protected)
				doc[models.FieldID] = float64(id)
				return doc, nil
			}
			return Merge(current, partial, flag, s.protected), nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: set %d: %w", id, err)
	}
	return out, nil
}

// Modify runs an atomic read-modify-write of the document under id.
func (s *Store) Modify(ctx context.Context, id int64, fn ModifyFunc) (models.Doc, error) {
	var out models.Doc
	err := s.call(ctx, "modify", func(ctx context.Context) (err error) {
		out, err = s.backend.Modify(ctx, id, func(current models.Doc) (models.Doc, error) {
			next, err := fn(current)
			if err != nil || next == nil {
				return nil, err
			}
			return models.NormalizeDoc(next)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: modify %d: %w", id, err)
	}
	return out, nil
}

// Find returns the documents matching q ordered by id.
func (s *Store) Find(ctx context.Context, q Query) ([]models.Doc, error) {
	if !q.All && len(q.Fields) == 0 {
		return []models.Doc{}, nil
	}

	if id, ok := q.onlyID(); ok {
		doc, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return []models.Doc{}, nil
		}
		return []models.Doc{doc}, nil
	}

	var docs []models.Doc
	err := s.call(ctx, "find", func(ctx context.Context) (err error) {
		docs, err = s.backend.List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: find: %w", err)
	}

	result := make([]models.Doc, 0, len(docs))
	for _, doc := range docs {
		if q.All || q.Match(doc) {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, _ := models.IntValue(result[i][models.FieldID])
		b, _ := models.IntValue(result[j][models.FieldID])
		return a < b
	})
	return result, nil
}

// Del removes the document under id.
func (s *Store) Del(ctx context.Context, id int64) error {
	err := s.call(ctx, "del", func(ctx context.Context) error {
		return s.backend.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("store: del %d: %w", id, err)
	}
	return nil
}

// Clear wipes the whole namespace.
func (s *Store) Clear(ctx context.Context) error {
	err := s.call(ctx, "clear", func(ctx context.Context) error {
		return s.backend.Clear(ctx)
	})
	if err != nil {
		return fmt.Errorf("store: clear %s: %w", s.namespace, err)
	}
	return nil
}

// call bounds fn by the store timeout and reports an expired bound as
// ErrStoreTimeout. The bound is observed wherever the backend consults ctx:
// before and after each critical section, while waiting on a pebble
// document slot and inside sqlite calls. Time spent waiting on the memory
// backend's mutex is not bounded.
func (s *Store) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, biderrors.ErrStoreTimeout)
	}
	return err
}
