package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryRepo is a slice backed Repository used to exercise Service semantics.
type memoryRepo struct {
	items     []Event
	appendErr error
}

func (m *memoryRepo) List(_ context.Context) ([]Event, error) {
	out := make([]Event, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

func (m *memoryRepo) FindByID(_ context.Context, id string) (*Event, error) {
	for _, item := range m.items {
		if item.ID == id {
			found := item.Clone()
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) Append(_ context.Context, event Event) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	for _, item := range m.items {
		if item.ID == event.ID {
			return ErrConflict
		}
	}
	m.items = append(m.items, event.Clone())
	return nil
}

func (m *memoryRepo) MergeByID(_ context.Context, id string, patch Patch) (*Event, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Apply(patch)
			merged := m.items[i].Clone()
			return &merged, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) RemoveByID(_ context.Context, id string) (bool, error) {
	kept := m.items[:0]
	removed := false
	for _, item := range m.items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	m.items = kept
	return removed, nil
}

// stubRepo delegates to function fields, failing loudly when one is unset.
type stubRepo struct {
	memoryRepo
	mergeFn  func(id string, patch Patch) (*Event, error)
	removeFn func(id string) (bool, error)
}

func (s *stubRepo) MergeByID(ctx context.Context, id string, patch Patch) (*Event, error) {
	if s.mergeFn != nil {
		return s.mergeFn(id, patch)
	}
	return s.memoryRepo.MergeByID(ctx, id, patch)
}

func (s *stubRepo) RemoveByID(ctx context.Context, id string) (bool, error) {
	if s.removeFn != nil {
		return s.removeFn(id)
	}
	return s.memoryRepo.RemoveByID(ctx, id)
}

func mustPatch(t *testing.T, body string) Patch {
	t.Helper()
	patch, err := ParsePatch([]byte(body))
	require.NoError(t, err)
	return patch
}

func sequenceIDs(values ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(values) {
			return "", errors.New("sequence exhausted")
		}
		v := values[i]
		i++
		return v, nil
	}
}

func TestServiceCreateThenGetRoundTrip(t *testing.T) {
	svc := NewService(&memoryRepo{})
	ctx := context.Background()

	created, err := svc.Create(ctx, mustPatch(t, `{"title":"Wydarzenie_2","date":"02-02-2023","description":"Opis wydarzenia 2"}`))
	require.NoError(t, err)
	require.Len(t, created.ID, 8)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, "Wydarzenie_2", fetched.Title())
	require.Equal(t, "02-02-2023", fetched.Date())
	require.Equal(t, "Opis wydarzenia 2", fetched.Description())
}

func TestServiceCreateIgnoresClientID(t *testing.T) {
	svc := NewService(&memoryRepo{}, WithIDGenerator(sequenceIDs("srv00001")))

	created, err := svc.Create(context.Background(), mustPatch(t, `{"id":"client","title":"T"}`))

	require.NoError(t, err)
	require.Equal(t, "srv00001", created.ID)
	require.NotContains(t, created.Fields, "id")
}

func TestServiceCreatePreservesExtraFields(t *testing.T) {
	svc := NewService(&memoryRepo{})

	created, err := svc.Create(context.Background(), mustPatch(t, `{"title":"T","date":"D","description":"X","capacity":40}`))

	require.NoError(t, err)
	data, err := json.Marshal(created)
	require.NoError(t, err)
	require.JSONEq(t, fmt.Sprintf(`{"id":%q,"title":"T","date":"D","description":"X","capacity":40}`, created.ID), string(data))
}

func TestServiceCreateStoresOnlySuppliedFields(t *testing.T) {
	svc := NewService(&memoryRepo{}, WithIDGenerator(sequenceIDs("e0000001", "e0000002", "e0000003")))

	tests := []struct {
		body string
		want string
	}{
		{body: `{}`, want: `{"id":"e0000001"}`},
		{body: `{"date":"D"}`, want: `{"id":"e0000002","date":"D"}`},
		{body: `{"title":null,"description":5}`, want: `{"id":"e0000003","title":null,"description":5}`},
	}

	for _, tt := range tests {
		created, err := svc.Create(context.Background(), mustPatch(t, tt.body))
		require.NoError(t, err)

		data, err := json.Marshal(created)
		require.NoError(t, err)
		require.JSONEq(t, tt.want, string(data))
	}
}

func TestServiceCreateKeepsNonStringNamedFields(t *testing.T) {
	svc := NewService(&memoryRepo{})

	created, err := svc.Create(context.Background(), mustPatch(t, `{"title":5,"date":["2024","05"]}`))

	require.NoError(t, err)
	require.Equal(t, `5`, string(created.Fields["title"]))
	require.Equal(t, `["2024","05"]`, string(created.Fields["date"]))
	require.Empty(t, created.Title())
}

func TestServiceCreateUniqueIDs(t *testing.T) {
	svc := NewService(&memoryRepo{})
	seen := map[string]struct{}{}

	for i := 0; i < 50; i++ {
		created, err := svc.Create(context.Background(), mustPatch(t, fmt.Sprintf(`{"title":"E%d"}`, i)))
		require.NoError(t, err)
		seen[created.ID] = struct{}{}
	}

	require.Len(t, seen, 50)
}

func TestServiceCreateRetriesOnCollision(t *testing.T) {
	repo := &memoryRepo{items: []Event{{ID: "taken001"}}}
	svc := NewService(repo, WithIDGenerator(sequenceIDs("taken001", "fresh002")))

	created, err := svc.Create(context.Background(), mustPatch(t, `{"title":"T"}`))

	require.NoError(t, err)
	require.Equal(t, "fresh002", created.ID)
	require.Len(t, repo.items, 2)
}

func TestServiceCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := &memoryRepo{items: []Event{{ID: "same0000"}}}
	svc := NewService(repo, WithIDGenerator(func() (string, error) { return "same0000", nil }))

	_, err := svc.Create(context.Background(), mustPatch(t, `{"title":"T"}`))

	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, repo.items, 1)
}

func TestServiceCreatePersistenceFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewService(&memoryRepo{appendErr: boom})

	_, err := svc.Create(context.Background(), mustPatch(t, `{"title":"T"}`))

	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrInvalidInput)
}

func TestServiceCreateRejectsNilInput(t *testing.T) {
	svc := NewService(&memoryRepo{})

	_, err := svc.Create(context.Background(), nil)

	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestServiceListOrdering(t *testing.T) {
	svc := NewService(&memoryRepo{})
	ctx := context.Background()

	var want []string
	for _, title := range []string{"A", "B", "C"} {
		created, err := svc.Create(ctx, mustPatch(t, fmt.Sprintf(`{"title":%q}`, title)))
		require.NoError(t, err)
		want = append(want, created.ID)
	}

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		require.Equal(t, want[i], item.ID)
	}
	require.Equal(t, "A", items[0].Title())
	require.Equal(t, "C", items[2].Title())
}

func TestServiceListEmptyIsNotNil(t *testing.T) {
	items, err := NewService(&memoryRepo{}).List(context.Background())

	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestServiceGetNotFound(t *testing.T) {
	svc := NewService(&memoryRepo{})

	_, err := svc.Get(context.Background(), "doesnotexist")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "   ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateMergeSemantics(t *testing.T) {
	repo := &memoryRepo{items: []Event{{ID: "a1", Fields: fields(`{"title":"T","date":"D","description":"X"}`)}}}
	svc := NewService(repo)

	updated, err := svc.Update(context.Background(), "a1", mustPatch(t, `{"description":"Y"}`))

	require.NoError(t, err)
	require.Equal(t, Event{ID: "a1", Fields: fields(`{"title":"T","date":"D","description":"Y"}`)}, *updated)

	stored, err := svc.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "Y", stored.Description())
}

func TestServiceUpdateNotFound(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), "missing", mustPatch(t, `{"title":"T"}`))

	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.items)
}

func TestServiceUpdateWrapsPersistenceFailure(t *testing.T) {
	boom := errors.New("read-only file system")
	repo := &stubRepo{mergeFn: func(string, Patch) (*Event, error) { return nil, boom }}
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), "a1", mustPatch(t, `{"title":"T"}`))

	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "update event a1")
}

func TestServiceUpdateRequiresBody(t *testing.T) {
	called := false
	repo := &stubRepo{mergeFn: func(string, Patch) (*Event, error) {
		called = true
		return nil, nil
	}}
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), "a1", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.False(t, called)
}

func TestServiceUpdateStoresAnyValueType(t *testing.T) {
	repo := &memoryRepo{items: []Event{{ID: "a1", Fields: fields(`{"title":"T"}`)}}}
	svc := NewService(repo)

	updated, err := svc.Update(context.Background(), "a1", Patch{"title": json.RawMessage(`[]`), "date": json.RawMessage(`null`)})

	require.NoError(t, err)
	require.Equal(t, `[]`, string(updated.Fields["title"]))
	require.Equal(t, `null`, string(updated.Fields["date"]))
}

func TestServiceDeleteIsIdempotent(t *testing.T) {
	repo := &memoryRepo{items: []Event{{ID: "a1"}, {ID: "b2"}}}
	svc := NewService(repo)
	ctx := context.Background()

	removed, err := svc.Delete(ctx, "a1")
	require.NoError(t, err)
	require.True(t, removed)

	_, err = svc.Get(ctx, "a1")
	require.ErrorIs(t, err, ErrNotFound)

	removed, err = svc.Delete(ctx, "a1")
	require.NoError(t, err)
	require.False(t, removed)

	require.Len(t, repo.items, 1)
}

func TestServiceDeleteWrapsPersistenceFailure(t *testing.T) {
	boom := errors.New("io error")
	svc := NewService(&stubRepo{removeFn: func(string) (bool, error) { return false, boom }})

	_, err := svc.Delete(context.Background(), "a1")

	require.ErrorIs(t, err, boom)
}
