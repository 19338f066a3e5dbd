package perftests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bid "bidio/internal/bidService"
	"bidio/internal/biderrors"
	"bidio/internal/channel"
	"bidio/internal/models"
	"bidio/internal/packet"
	"bidio/internal/store"
	"bidio/utils"

	"github.com/stretchr/testify/require"
)

func init() {
	utils.SetOutput(io.Discard)
}

// openBids opens a bid service on the named backend, rooted in dir
func openBids(tb testing.TB, backend, dir string) *bid.Bid {
	tb.Helper()
	cfg := store.Config{Name: backend, Timeout: 5 * time.Second}
	switch backend {
	case store.BackendPebble:
		cfg.Path = filepath.Join(dir, "pebble")
	case store.BackendSQLite:
		cfg.Path = filepath.Join(dir, "bidio.db")
	}
	f, err := store.Open(cfg)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = f.Close() })

	s, err := f.Store(context.Background(), "perf")
	require.NoError(tb, err)
	return bid.New(s)
}

func seed(tb testing.TB, svc *bid.Bid, n int) {
	tb.Helper()
	for i := 1; i <= n; i++ {
		_, err := svc.Set(context.Background(), int64(i), models.Doc{"description": fmt.Sprintf("lot %d", i)})
		require.NoError(tb, err)
	}
}

var backends = []string{store.BackendMemory, store.BackendPebble, store.BackendSQLite}

// Benchmark 1: Lock/Unlock - Isolated Bids (Low Contention - Micro Benchmark)
func Benchmark_LockUnlock_Isolated(b *testing.B) {
	for _, backend := range backends {
		b.Run(backend, func(b *testing.B) {
			svc := openBids(b, backend, b.TempDir())
			seed(b, svc, b.N)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				id := int64(i + 1)
				owner := models.NewOwner(i, "")
				if _, err := svc.Lock(ctx, id, owner, false); err != nil {
					b.Fatalf("failed to lock bid: %v", err)
				}
				if _, err := svc.Unlock(ctx, id, owner, false); err != nil {
					b.Fatalf("failed to unlock bid: %v", err)
				}
			}
		})
	}
}

// Benchmark 2: Lock - Shared Bid (High Contention - Concurrency Benchmark)
func Benchmark_Lock_ConcurrentSharedBid(b *testing.B) {
	svc := openBids(b, store.BackendMemory, b.TempDir())
	seed(b, svc, 1)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			owner := models.NewOwner(rnd.Intn(8), "")
			if _, err := svc.Lock(ctx, 1, owner, false); err == nil {
				_, _ = svc.Unlock(ctx, 1, owner, false)
			}
		}
	})
}

// Benchmark 3: Packet Encode/Decode round trip
func Benchmark_Packet_Codec(b *testing.B) {
	p, err := packet.New(packet.Lock, packet.ID(123), map[string]any{
		"owner": map[string]any{"id": 10, "name": "ana", "color": "#ff0000"},
	})
	require.NoError(b, err)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		raw, err := packet.Encode(p)
		if err != nil {
			b.Fatalf("encode: %v", err)
		}
		if _, err := packet.Decode(raw); err != nil {
			b.Fatalf("decode: %v", err)
		}
	}
}

// Benchmark 4: Channel Handle - a lock/unlock pair per iteration with one
// subscriber draining the broadcast feed
func Benchmark_Channel_Handle(b *testing.B) {
	svc := openBids(b, store.BackendMemory, b.TempDir())
	seed(b, svc, 1)
	ch := channel.New("perf", svc)
	defer ch.Close()

	feed, leave := ch.Connect(channel.NewConn("listener", nil))
	defer leave()
	go func() {
		for range feed {
		}
	}()

	conn := channel.NewConn("sender", models.NewOwner(10, "ana"))
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ch.Handle(ctx, conn, "21")
		ch.Handle(ctx, conn, "31")
	}
}

// Exactly one of many concurrent lockers wins an unlocked bid; all others
// see the winner as the holder.
func TestLock_Contention(t *testing.T) {
	const lockers = 32

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			svc := openBids(t, backend, t.TempDir())
			seed(t, svc, 1)
			ctx := context.Background()

			var wins int64
			var winner atomic.Value
			seen := make([]models.Owner, lockers)

			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < lockers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					got, err := svc.Lock(ctx, 1, models.NewOwner(i+1, ""), false)
					if err != nil {
						var locked *biderrors.LockedError
						if errors.As(err, &locked) {
							seen[i] = locked.Owner
						}
						return
					}
					atomic.AddInt64(&wins, 1)
					winner.Store(got.Owner)
					seen[i] = got.Owner
				}(i)
			}
			close(start)
			wg.Wait()

			require.Equal(t, int64(1), wins)
			heldID, ok := winner.Load().(models.Owner).ID()
			require.True(t, ok)
			for i, o := range seen {
				require.NotNil(t, o, "locker %d failed with an unexpected error", i)
				id, _ := o.ID()
				require.Equal(t, heldID, id, "locker %d saw another holder", i)
			}

			stored, err := svc.Get(ctx, 1)
			require.NoError(t, err)
			require.True(t, stored.Locked)
			storedID, _ := stored.OwnerID()
			require.Equal(t, heldID, storedID)
		})
	}
}
