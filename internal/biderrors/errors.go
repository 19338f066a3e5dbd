package biderrors

import (
	"errors"
	"fmt"

	"bidio/internal/models"
)

// Bid state machine errors
var (
	ErrMissingID           = errors.New("missing bid id")
	ErrMissingOwner        = errors.New("missing bid owner")
	ErrBidNotFound         = errors.New("bid not found")
	ErrBidCompleted        = errors.New("bid is completed")
	ErrUnknownState        = errors.New("unknown bid state")
	ErrLockedByAnotherUser = errors.New("locked by another user")
	ErrBidNotLocked        = errors.New("bid is not locked")
	ErrSaveFailed          = errors.New("error saving bid")
)

// Store-level errors
var (
	ErrInvalidQuery = errors.New("invalid query parameter")
	ErrStoreTimeout = errors.New("store operation timed out")
)

// Wire and dispatch errors
var (
	ErrParser        = errors.New("parser error")
	ErrUnknownType   = errors.New("unknown packet type")
	ErrInvalidMethod = errors.New("invalid method")
)

// LockedError reports the owner currently holding a bid
type LockedError struct {
	Owner models.Owner
}

func (e *LockedError) Error() string {
	id, _ := e.Owner.ID()
	return fmt.Sprintf("%s (owner %s)", ErrLockedByAnotherUser, id)
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLockedByAnotherUser
}

// Locked returns a LockedError carrying a copy of owner.
func Locked(owner models.Owner) error {
	return &LockedError{Owner: owner.Clone()}
}
