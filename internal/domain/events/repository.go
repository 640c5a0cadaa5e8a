package events

import "context"

// Repository is the persistence surface for the events collection.
// Every mutating method flushes the underlying document before returning.
type Repository interface {
	// List returns all events in insertion order.
	List(ctx context.Context) ([]Event, error)
	// FindByID returns the first event with id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Event, error)
	// Append adds event to the end of the collection. It returns ErrConflict
	// when the id is already present.
	Append(ctx context.Context, event Event) error
	// MergeByID shallow-merges patch into the first event with id and returns
	// the merged record, or ErrNotFound.
	MergeByID(ctx context.Context, id string, patch Patch) (*Event, error)
	// RemoveByID removes every event with id and reports whether any existed.
	RemoveByID(ctx context.Context, id string) (bool, error)
}
