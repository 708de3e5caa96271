package storage

import (
	"context"

	"tickscope/internal/model"
)

// EventSource yields decoded pool events in file order.
type EventSource interface {
	// Next returns the next event record, or (nil, nil) when exhausted.
	Next(ctx context.Context) (*model.EventRecord, error)
	Close() error
}
