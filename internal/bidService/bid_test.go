package bid

import (
	"context"
	"errors"
	"testing"
	"time"

	"bidio/internal/biderrors"
	"bidio/internal/models"
	"bidio/internal/store"

	"github.com/goccy/go-json"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

var (
	userA = models.NewOwner(10, "ana")
	userB = models.NewOwner(20, "bo")
)

func newBid(t *testing.T, opts ...Option) *Bid {
	t.Helper()
	s := store.New(store.NewMemoryBackend(), store.Options{
		Namespace: "bid-test",
		Immutable: []string{"saleDate"},
	})
	return New(s, opts...)
}

func seedBid(t *testing.T, b *Bid, id int64, data models.Doc) models.Bid {
	t.Helper()
	bid, err := b.Set(context.Background(), id, data)
	require.NoError(t, err)
	return bid
}

func ownerOf(t *testing.T, bid models.Bid) models.OwnerID {
	t.Helper()
	id, ok := bid.OwnerID()
	require.True(t, ok, "bid has no owner")
	return id
}

func idOf(o models.Owner) models.OwnerID {
	id, _ := o.ID()
	return id
}

// Tests Set
func TestBid_Set(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()

	bid, err := b.Set(ctx, 1, models.Doc{"description": "tractor"})
	require.NoError(t, err)
	require.Equal(t, int64(1), bid.ID)
	require.False(t, bid.Locked)
	require.Nil(t, bid.Owner)
	require.Empty(t, bid.Owners)
	require.Equal(t, models.StateCreated, bid.State)
	require.Equal(t, "tractor", bid.Fields["description"])

	_, err = b.Set(ctx, 0, models.Doc{})
	require.ErrorIs(t, err, biderrors.ErrMissingID)
}

// Tests Lock, Claim and the exclusivity of the lock
func TestBid_Lock(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)

	bid, err := b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)
	require.True(t, bid.Locked)
	require.Equal(t, idOf(userA), ownerOf(t, bid))
	require.Contains(t, bid.Owners, "10")

	// re-locking by the holder is fine
	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)

	_, err = b.Lock(ctx, 1, userB, false)
	require.ErrorIs(t, err, biderrors.ErrLockedByAnotherUser)
	var locked *biderrors.LockedError
	require.True(t, errors.As(err, &locked))
	require.Equal(t, idOf(userA), idOf(locked.Owner))

	stored, err := b.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, idOf(userA), ownerOf(t, stored))

	bid, err = b.Claim(ctx, 1, userB)
	require.NoError(t, err)
	require.True(t, bid.Locked)
	require.Equal(t, idOf(userB), ownerOf(t, bid))
	require.Contains(t, bid.Owners, "10")
	require.Contains(t, bid.Owners, "20")
}

func TestBid_LockErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		seed          models.Doc
		id            int64
		owner         models.Owner
		expectedError error
	}{
		{name: "missing_owner", seed: models.Doc{}, id: 1, owner: nil, expectedError: biderrors.ErrMissingOwner},
		{name: "owner_without_id", seed: models.Doc{}, id: 1, owner: models.Owner{"name": "x"}, expectedError: biderrors.ErrMissingOwner},
		{name: "not_found", seed: nil, id: 99, owner: userA, expectedError: biderrors.ErrBidNotFound},
		{name: "missing_id", seed: nil, id: 0, owner: userA, expectedError: biderrors.ErrMissingID},
		{name: "completed", seed: models.Doc{"state": 2}, id: 1, owner: userA, expectedError: biderrors.ErrBidCompleted},
		{name: "unknown_state", seed: models.Doc{"state": 7}, id: 1, owner: userA, expectedError: biderrors.ErrUnknownState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBid(t)
			if tt.seed != nil {
				seedBid(t, b, 1, tt.seed)
			}
			_, err := b.Lock(ctx, tt.id, tt.owner, false)
			require.ErrorIs(t, err, tt.expectedError)
		})
	}
}

// Tests Unlock and ForceUnlock
func TestBid_Unlock(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)

	_, err := b.Unlock(ctx, 1, userA, false)
	require.ErrorIs(t, err, biderrors.ErrBidNotLocked)

	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)

	_, err = b.Unlock(ctx, 1, userB, false)
	require.ErrorIs(t, err, biderrors.ErrLockedByAnotherUser)

	bid, err := b.Unlock(ctx, 1, userA, false)
	require.NoError(t, err)
	require.False(t, bid.Locked)
	require.Nil(t, bid.Owner)
	require.Contains(t, bid.Owners, "10")

	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)
	bid, err = b.ForceUnlock(ctx, 1, userB)
	require.NoError(t, err)
	require.False(t, bid.Locked)
	require.Contains(t, bid.Owners, "20")

	// forcing an unlocked bid is allowed
	_, err = b.ForceUnlock(ctx, 1, userB)
	require.NoError(t, err)

	// without an acting owner the holder check is skipped
	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)
	bid, err = b.Unlock(ctx, 1, nil, false)
	require.NoError(t, err)
	require.False(t, bid.Locked)
}

// Tests the pending and complete stages
func TestBid_PendingAndComplete(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)

	_, err := b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)

	_, err = b.Pending(ctx, 1, userB)
	require.ErrorIs(t, err, biderrors.ErrLockedByAnotherUser)

	bid, err := b.Pending(ctx, 1, userA)
	require.NoError(t, err)
	require.Equal(t, models.StatePending, bid.State)
	require.False(t, bid.Locked)
	require.Nil(t, bid.Owner)

	// a pending bid is free for anyone to take
	_, err = b.Lock(ctx, 1, userB, false)
	require.NoError(t, err)

	_, err = b.Complete(ctx, 1, userA)
	require.ErrorIs(t, err, biderrors.ErrLockedByAnotherUser)

	bid, err = b.Complete(ctx, 1, userB)
	require.NoError(t, err)
	require.Equal(t, models.StateComplete, bid.State)
	require.True(t, bid.Locked)
	require.Equal(t, idOf(userB), ownerOf(t, bid))

	_, err = b.Lock(ctx, 1, userB, false)
	require.ErrorIs(t, err, biderrors.ErrBidCompleted)
	_, err = b.Claim(ctx, 1, userA)
	require.ErrorIs(t, err, biderrors.ErrBidCompleted)
	_, err = b.Unlock(ctx, 1, userB, true)
	require.ErrorIs(t, err, biderrors.ErrBidCompleted)
	_, err = b.Pending(ctx, 1, userB)
	require.ErrorIs(t, err, biderrors.ErrBidCompleted)
	_, err = b.Complete(ctx, 1, userB)
	require.ErrorIs(t, err, biderrors.ErrBidCompleted)
}

func TestBid_CompleteWithoutOwner(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)

	_, err := b.Complete(ctx, 1, nil)
	require.ErrorIs(t, err, biderrors.ErrMissingOwner)

	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)

	bid, err := b.Complete(ctx, 1, nil)
	require.NoError(t, err)
	require.Equal(t, models.StateComplete, bid.State)
	require.Equal(t, idOf(userA), ownerOf(t, bid))
}

// owners only ever grows
func TestBid_OwnersHistory(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)
	userC := models.NewOwner("c-1", "cy")

	_, err := b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)
	_, err = b.Claim(ctx, 1, userB)
	require.NoError(t, err)
	_, err = b.ForceUnlock(ctx, 1, userC)
	require.NoError(t, err)
	bid, err := b.Pending(ctx, 1, userA)
	require.NoError(t, err)

	require.Len(t, bid.Owners, 3)
	require.Equal(t, "ana", bid.Owners["10"]["name"])
	require.Equal(t, "bo", bid.Owners["20"]["name"])
	require.Equal(t, "cy", bid.Owners["c-1"]["name"])
}

// Tests Update field protection
func TestBid_Update(t *testing.T) {
	ctx := context.Background()
	today := "10/14/2026"

	tests := []struct {
		name   string
		force  bool
		verify func(t *testing.T, bid models.Bid)
	}{
		{
			name:  "unforced_keeps_protected_fields",
			force: false,
			verify: func(t *testing.T, bid models.Bid) {
				require.Equal(t, models.StateCreated, bid.State)
				require.False(t, bid.Locked)
				require.Nil(t, bid.Owner)
				require.Equal(t, today, bid.Fields["saleDate"])
				require.Equal(t, "sold", bid.Fields["status"])
			},
		},
		{
			name:  "forced_applies_everything",
			force: true,
			verify: func(t *testing.T, bid models.Bid) {
				require.Equal(t, models.StatePending, bid.State)
				require.True(t, bid.Locked)
				require.Equal(t, idOf(userB), ownerOf(t, bid))
				require.Equal(t, "10/15/2026", bid.Fields["saleDate"])
				require.Equal(t, "sold", bid.Fields["status"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBid(t)
			seedBid(t, b, 1, models.Doc{"status": "BTL", "saleDate": today})

			bid, err := b.Update(ctx, 1, models.Doc{
				"state":    1,
				"locked":   1,
				"owner":    map[string]any(userB),
				"saleDate": "10/15/2026",
				"status":   "sold",
			}, tt.force)
			require.NoError(t, err)
			tt.verify(t, bid)

			stored, err := b.Get(ctx, 1)
			require.NoError(t, err)
			tt.verify(t, stored)
		})
	}
}

func TestBid_UpdateCreatesMissingBid(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()

	bid, err := b.Update(ctx, 5, models.Doc{"description": "new"}, false)
	require.NoError(t, err)
	require.Equal(t, int64(5), bid.ID)
	require.False(t, bid.Locked)
	require.Equal(t, models.StateCreated, bid.State)
	require.Equal(t, "new", bid.Fields["description"])

	// updates do not consult the lock
	_, err = b.Lock(ctx, 5, userA, false)
	require.NoError(t, err)
	bid, err = b.Update(ctx, 5, models.Doc{"description": "changed"}, false)
	require.NoError(t, err)
	require.Equal(t, "changed", bid.Fields["description"])
	require.True(t, bid.Locked)

	// an unforced insert cannot seed protected fields
	bid, err = b.Update(ctx, 7, models.Doc{"locked": true, "state": 2}, false)
	require.NoError(t, err)
	require.False(t, bid.Locked)
	require.Equal(t, models.StateCreated, bid.State)
	bid, err = b.Lock(ctx, 7, userA, false)
	require.NoError(t, err)
	require.True(t, bid.Locked)
}

// Tests Find, Clear and the shape of the result
func TestBid_FindAndClear(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	for _, id := range []int64{3, 1, 2} {
		seedBid(t, b, id, models.Doc{"description": "lot"})
	}

	res, err := b.Find(ctx, store.QueryAll())
	require.NoError(t, err)
	require.False(t, res.Single)
	require.Len(t, res.Bids, 3)
	require.Equal(t, int64(1), res.Bids[0].ID)
	require.Equal(t, int64(3), res.Bids[2].ID)

	res, err = b.Find(ctx, store.QueryID(2))
	require.NoError(t, err)
	require.True(t, res.Single)
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var single map[string]any
	require.NoError(t, json.Unmarshal(raw, &single))
	require.Equal(t, float64(2), single["id"])

	res, err = b.Find(ctx, store.QueryID(42))
	require.NoError(t, err)
	raw, err = json.Marshal(res)
	require.NoError(t, err)
	require.Equal(t, "null", string(raw))

	require.NoError(t, b.Clear(ctx))
	res, err = b.Find(ctx, store.QueryAll())
	require.NoError(t, err)
	require.Empty(t, res.Bids)
	raw, err = json.Marshal(res)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}

func TestBid_Delete(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)

	require.NoError(t, b.Delete(ctx, 1))
	_, err := b.Get(ctx, 1)
	require.ErrorIs(t, err, biderrors.ErrBidNotFound)
}

// Tests period scoping of Fetch and Find
func TestBid_Period(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC) }
	b := newBid(t, WithPeriod("saleDate", "", clock))
	ctx := context.Background()
	require.Equal(t, "10/14/2026", b.Period())

	seedBid(t, b, 1, models.Doc{"saleDate": "10/14/2026"})
	seedBid(t, b, 2, models.Doc{"saleDate": "01/01/01"})
	seedBid(t, b, 3, nil)

	bid, err := b.Fetch(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), bid.ID)

	_, err = b.Fetch(ctx, 2)
	require.ErrorIs(t, err, biderrors.ErrBidNotFound)
	_, err = b.Fetch(ctx, 3)
	require.ErrorIs(t, err, biderrors.ErrBidNotFound)

	res, err := b.Find(ctx, store.Where(map[string]any{"state": 0}))
	require.NoError(t, err)
	require.Len(t, res.Bids, 1)
	require.Equal(t, int64(1), res.Bids[0].ID)

	// the whole namespace is never scoped
	res, err = b.Find(ctx, store.QueryAll())
	require.NoError(t, err)
	require.Len(t, res.Bids, 3)
}

// Tests the events reported to observers
func TestBid_Events(t *testing.T) {
	b := newBid(t)
	ctx := context.Background()
	seedBid(t, b, 1, nil)

	var got []Event
	cancel := b.OnEvent(func(ev Event) { got = append(got, ev) })

	_, err := b.Fetch(ctx, 1)
	require.NoError(t, err)
	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)
	_, err = b.Lock(ctx, 1, userB, false)
	require.Error(t, err)
	_, err = b.Update(ctx, 1, models.Doc{"a": 1}, false)
	require.NoError(t, err)
	_, err = b.Unlock(ctx, 1, userA, false)
	require.NoError(t, err)

	names := make([]EventName, 0, len(got))
	for _, ev := range got {
		names = append(names, ev.Name)
	}
	require.Equal(t, []EventName{EventFetch, EventLock, EventError, EventUpdate, EventUnlock}, names)
	require.ErrorIs(t, got[2].Err, biderrors.ErrLockedByAnotherUser)
	require.Equal(t, idOf(userA), ownerOf(t, got[1].Bid))

	cancel()
	_, err = b.Lock(ctx, 1, userA, false)
	require.NoError(t, err)
	require.Len(t, got, 5)
}

// Tests store failures surfacing through the state machine
func TestBid_StoreFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	tests := []struct {
		name          string
		mockSetup     func(m *store.MockBidStore)
		call          func(b *Bid) error
		expectedError error
	}{
		{
			name: "lock_store_error",
			mockSetup: func(m *store.MockBidStore) {
				m.EXPECT().Modify(gomock.Any(), int64(1), gomock.Any()).Return(nil, boom)
			},
			call: func(b *Bid) error {
				_, err := b.Lock(ctx, 1, userA, false)
				return err
			},
			expectedError: boom,
		},
		{
			name: "lock_save_failed",
			mockSetup: func(m *store.MockBidStore) {
				m.EXPECT().Modify(gomock.Any(), int64(1), gomock.Any()).Return(nil, nil)
			},
			call: func(b *Bid) error {
				_, err := b.Lock(ctx, 1, userA, false)
				return err
			},
			expectedError: biderrors.ErrSaveFailed,
		},
		{
			name: "update_save_failed",
			mockSetup: func(m *store.MockBidStore) {
				m.EXPECT().Set(gomock.Any(), int64(1), gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			call: func(b *Bid) error {
				_, err := b.Update(ctx, 1, models.Doc{"a": 1}, false)
				return err
			},
			expectedError: biderrors.ErrSaveFailed,
		},
		{
			name: "get_timeout",
			mockSetup: func(m *store.MockBidStore) {
				m.EXPECT().Get(gomock.Any(), int64(1)).Return(nil, biderrors.ErrStoreTimeout)
			},
			call: func(b *Bid) error {
				_, err := b.Get(ctx, 1)
				return err
			},
			expectedError: biderrors.ErrStoreTimeout,
		},
		{
			name: "find_invalid_query",
			mockSetup: func(m *store.MockBidStore) {
				m.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, biderrors.ErrInvalidQuery)
			},
			call: func(b *Bid) error {
				_, err := b.Find(ctx, store.QueryAll())
				return err
			},
			expectedError: biderrors.ErrInvalidQuery,
		},
		{
			name: "clear_error",
			mockSetup: func(m *store.MockBidStore) {
				m.EXPECT().Clear(gomock.Any()).Return(boom)
			},
			call: func(b *Bid) error {
				return b.Clear(ctx)
			},
			expectedError: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockStore := store.NewMockBidStore(ctrl)
			tt.mockSetup(mockStore)
			err := tt.call(New(mockStore))
			require.ErrorIs(t, err, tt.expectedError)
		})
	}
}
