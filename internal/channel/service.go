package channel

import (
	"context"

	bid "bidio/internal/bidService"
	"bidio/internal/models"
	"bidio/internal/store"
)

//go:generate mockgen -source=service.go -destination=mock_service.go -package=channel

// BidService is the bid state machine a channel dispatches to
type BidService interface {
	Fetch(ctx context.Context, id int64) (models.Bid, error)
	Find(ctx context.Context, q store.Query) (bid.Result, error)
	Lock(ctx context.Context, id int64, owner models.Owner, force bool) (models.Bid, error)
	Claim(ctx context.Context, id int64, owner models.Owner) (models.Bid, error)
	Unlock(ctx context.Context, id int64, owner models.Owner, force bool) (models.Bid, error)
	ForceUnlock(ctx context.Context, id int64, owner models.Owner) (models.Bid, error)
	Pending(ctx context.Context, id int64, owner models.Owner) (models.Bid, error)
	Complete(ctx context.Context, id int64, owner models.Owner) (models.Bid, error)
	Update(ctx context.Context, id int64, data models.Doc, force bool) (models.Bid, error)
	Set(ctx context.Context, id int64, data models.Doc) (models.Bid, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

var _ BidService = (*bid.Bid)(nil)
