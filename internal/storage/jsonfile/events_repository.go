package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Togather-Foundation/events-api/internal/domain/events"
	"github.com/Togather-Foundation/events-api/internal/metrics"
)

// EventsCollection is the document key holding event records.
const EventsCollection = "events"

// EventRepository keeps events in the EventsCollection of a Store.
type EventRepository struct {
	store *Store
}

var _ events.Repository = (*EventRepository)(nil)

// NewEventRepository returns a repository over store. The store must have
// been opened with EventsCollection.
func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{store: store}
}

func (r *EventRepository) List(_ context.Context) ([]events.Event, error) {
	var items []events.Event
	if err := r.store.Read(EventsCollection, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []events.Event{}
	}
	return items, nil
}

func (r *EventRepository) FindByID(ctx context.Context, id string) (*events.Event, error) {
	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, events.ErrNotFound
}

func (r *EventRepository) Append(ctx context.Context, event events.Event) error {
	return r.mutate(ctx, func(items []events.Event) ([]events.Event, error) {
		for _, existing := range items {
			if existing.ID == event.ID {
				return nil, events.ErrConflict
			}
		}
		return append(items, event.Clone()), nil
	})
}

func (r *EventRepository) MergeByID(ctx context.Context, id string, patch events.Patch) (*events.Event, error) {
	var merged events.Event
	err := r.mutate(ctx, func(items []events.Event) ([]events.Event, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			items[i].Apply(patch)
			merged = items[i].Clone()
			return items, nil
		}
		return nil, events.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func (r *EventRepository) RemoveByID(ctx context.Context, id string) (bool, error) {
	removed := false
	err := r.mutate(ctx, func(items []events.Event) ([]events.Event, error) {
		kept := items[:0]
		for _, item := range items {
			if item.ID == id {
				removed = true
				continue
			}
			kept = append(kept, item)
		}
		if !removed {
			return nil, ErrNoChange
		}
		return kept, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// mutate decodes the collection, applies fn and re-encodes the result.
func (r *EventRepository) mutate(ctx context.Context, fn func([]events.Event) ([]events.Event, error)) error {
	count := -1
	err := r.store.Mutate(ctx, EventsCollection, func(current json.RawMessage) (json.RawMessage, error) {
		var items []events.Event
		if len(current) > 0 {
			if err := json.Unmarshal(current, &items); err != nil {
				return nil, fmt.Errorf("decode collection %s: %w", EventsCollection, err)
			}
		}
		next, err := fn(items)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []events.Event{}
		}
		out, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode collection %s: %w", EventsCollection, err)
		}
		count = len(next)
		return out, nil
	})
	if err == nil && count >= 0 {
		metrics.StoreRecords.WithLabelValues(EventsCollection).Set(float64(count))
	}
	return err
}
