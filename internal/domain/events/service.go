package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/events-api/internal/domain/ids"
	"github.com/rs/zerolog"
)

// maxIDAttempts bounds id regeneration when a generated id collides.
const maxIDAttempts = 5

// Service implements the event operations on top of a Repository. It owns
// identifier generation; persistence and flushing belong to the repository.
type Service struct {
	repo  Repository
	newID ids.Generator
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator replaces the random identifier source.
func WithIDGenerator(gen ids.Generator) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewService returns a Service backed by repo. Identifiers come from
// ids.New unless WithIDGenerator is given.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, newID: ids.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every event in insertion order, never nil.
func (s *Service) List(ctx context.Context) ([]Event, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if items == nil {
		items = []Event{}
	}
	return items, nil
}

// Get returns the event with id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// Create stores a new event built from input. The server generated id
// always wins over an id supplied by the client.
func (s *Service) Create(ctx context.Context, input Patch) (*Event, error) {
	if input == nil {
		return nil, InputError{Message: "request body is required"}
	}
	logger := zerolog.Ctx(ctx)
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, err
		}

		event := Event{ID: id}
		event.Apply(input)

		err = s.repo.Append(ctx, event)
		if err == nil {
			logger.Info().Str("event_id", id).Str("title", event.Title()).Msg("event created")
			return &event, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("append event: %w", err)
		}
		logger.Warn().Str("event_id", id).Int("attempt", attempt).Msg("generated id collided, retrying")
	}
	return nil, fmt.Errorf("allocate event id after %d attempts: %w", maxIDAttempts, ErrConflict)
}

// Update merges patch into an existing event and returns the merged record.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if patch == nil {
		return nil, InputError{Message: "request body is required"}
	}
	event, err := s.repo.MergeByID(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update event %s: %w", id, err)
	}
	zerolog.Ctx(ctx).Info().Str("event_id", id).Strs("fields", patch.Keys()).Msg("event updated")
	return event, nil
}

// Delete removes an event. Deleting a missing id is not an error; the
// returned bool reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	removed, err := s.repo.RemoveByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete event %s: %w", id, err)
	}
	zerolog.Ctx(ctx).Info().Str("event_id", id).Bool("removed", removed).Msg("event deleted")
	return removed, nil
}
