package biderrors

import (
	"errors"
	"fmt"
	"testing"

	"bidio/internal/models"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	owner := models.NewOwner(10, "jb")

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
		wantData bool
	}{
		{name: "not_found", err: ErrBidNotFound, wantCode: "BidNotFound", wantMsg: "Bid not found"},
		{name: "wrapped_completed", err: fmt.Errorf("bid: lock 1: %w", ErrBidCompleted), wantCode: "BidCompleted", wantMsg: "Bid is completed"},
		{name: "locked_carries_owner", err: fmt.Errorf("bid: lock 1: %w", Locked(owner)), wantCode: "LockedByAnotherUser", wantMsg: "Locked by another user", wantData: true},
		{name: "timeout", err: fmt.Errorf("store: get 1: %w", ErrStoreTimeout), wantCode: "StoreTimeout", wantMsg: "Store operation timed out"},
		{name: "unknown_error", err: errors.New("disk on fire"), wantCode: "StoreError", wantMsg: "disk on fire"},
		{name: "nil_error", err: nil, wantCode: "Unknown", wantMsg: "Unknown error"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := Normalize(tc.err)
			require.Equal(t, tc.wantCode, p.Code)
			require.Equal(t, tc.wantMsg, p.Message)
			if tc.wantData {
				data, ok := p.Data.(map[string]any)
				require.True(t, ok)
				require.Equal(t, owner, data["owner"])
			} else {
				require.Nil(t, p.Data)
			}
		})
	}
}

func TestLockedErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Locked(models.NewOwner("abc", "")))
	require.True(t, errors.Is(err, ErrLockedByAnotherUser))
	require.False(t, errors.Is(err, ErrBidNotLocked))

	var locked *LockedError
	require.True(t, errors.As(err, &locked))
	id, ok := locked.Owner.ID()
	require.True(t, ok)
	require.Equal(t, models.OwnerID(`"abc"`), id)
}
