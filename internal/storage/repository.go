package storage

import (
	"context"
	"errors"

	"github.com/sandeepkv93/taskremind/internal/store"
)

var ErrNotFound = errors.New("storage: not found")

// Repository persists the local notification schedule and the history of
// deliveries. Delete and DeleteAll are idempotent.
type Repository interface {
	Save(ctx context.Context, item store.Scheduled) error
	Get(ctx context.Context, id string) (store.Scheduled, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Pending(ctx context.Context) ([]store.Scheduled, error)
	ListPending(ctx context.Context, filter PendingFilter) ([]store.Scheduled, error)

	RecordDelivery(ctx context.Context, in DeliveryRecord) error
	ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]DeliveryRecord, error)
}
