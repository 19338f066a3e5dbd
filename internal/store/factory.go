package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

var ErrUnknownBackend = errors.New("store: unknown backend")

// Config selects and configures the persistence backend
type Config struct {
	Name       string
	Path       string
	Collection string // namespace prefix, "<collection>-<channel>"
	Fresh      bool   // clear each namespace when it is first opened
	Timeout    time.Duration
	Immutable  []string
}

// ResolveBackend maps a configured name or alias onto a backend name.
func ResolveBackend(name string) (string, error) {
	switch name {
	case "", BackendMemory:
		return BackendMemory, nil
	case BackendPebble, "file", "embedded":
		return BackendPebble, nil
	case BackendSQLite, "document", "db":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// Factory owns the shared database handle of a backend and hands out one
// Store per channel namespace.
type Factory struct {
	cfg     Config
	backend string

	pebble *pebble.DB
	sqlite *sql.DB

	mu     sync.Mutex
	stores map[string]*Store
}

// Open prepares the backend named by cfg.
func Open(cfg Config) (*Factory, error) {
	name, err := ResolveBackend(cfg.Name)
	if err != nil {
		return nil, err
	}
	if cfg.Collection == "" {
		cfg.Collection = "bid"
	}
	f := &Factory{cfg: cfg, backend: name, stores: make(map[string]*Store)}

	switch name {
	case BackendPebble:
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "bidio")
		}
		f.pebble, err = OpenPebble(path)
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "bidio.db")
		}
		f.sqlite, err = OpenSQLite(path)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Backend is the resolved backend name.
func (f *Factory) Backend() string {
	return f.backend
}

// PebbleDB is the shared pebble handle, nil unless the backend is pebble.
func (f *Factory) PebbleDB() *pebble.DB {
	return f.pebble
}

// SQLDB is the shared sqlite handle, nil unless the backend is sqlite.
func (f *Factory) SQLDB() *sql.DB {
	return f.sqlite
}

// Namespace returns the document namespace used for channel.
func (f *Factory) Namespace(channel string) string {
	return f.cfg.Collection + "-" + channel
}

// Store returns the store of channel, creating it on first use.
func (f *Factory) Store(ctx context.Context, channel string) (*Store, error) {
	ns := f.Namespace(channel)

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stores[ns]; ok {
		return s, nil
	}

	var backend Backend
	switch f.backend {
	case BackendPebble:
		backend = NewPebbleBackend(f.pebble, ns)
	case BackendSQLite:
		backend = NewSQLiteBackend(f.sqlite, ns)
	default:
		backend = NewMemoryBackend()
	}

	s := New(backend, Options{Namespace: ns, Timeout: f.cfg.Timeout, Immutable: f.cfg.Immutable})
	if f.cfg.Fresh {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
	}
	f.stores[ns] = s
	return s, nil
}

// Close releases the shared database handle.
func (f *Factory) Close() error {
	switch {
	case f.pebble != nil:
		return f.pebble.Close()
	case f.sqlite != nil:
		return f.sqlite.Close()
	}
	return nil
}
