package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Togather-Foundation/events-api/internal/metrics"
	"github.com/Togather-Foundation/events-api/internal/telemetry"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/events-api/internal/storage/jsonfile"

var (
	// ErrNoChange can be returned from a Mutate callback to skip the flush.
	ErrNoChange = errors.New("no change")

	ErrWatchUnsupported = errors.New("adapter does not support watching")
)

// Store is a JSON document of named collections held in memory and flushed
// through an Adapter after every mutation. Collections it does not know
// about are kept as raw JSON and written back untouched.
type Store struct {
	adapter Adapter
	logger  zerolog.Logger
	tracer  trace.Tracer

	mu      sync.RWMutex
	doc     map[string]json.RawMessage
	written []byte
}

// Open loads the document from adapter. Each named collection missing from
// the document is seeded with an empty array and the result is flushed.
func Open(ctx context.Context, adapter Adapter, logger zerolog.Logger, collections ...string) (*Store, error) {
	s := &Store{
		adapter: adapter,
		logger:  logger.With().Str("component", "jsonfile").Logger(),
		tracer:  telemetry.GetTracer(tracerName),
	}

	data, err := adapter.Read()
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	seeded := false
	for _, name := range collections {
		if _, ok := doc[name]; !ok {
			doc[name] = json.RawMessage("[]")
			seeded = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.written = data
	if seeded {
		if err := s.flushLocked(ctx, doc); err != nil {
			return nil, err
		}
		s.logger.Info().Strs("collections", collections).Msg("document initialised")
	}
	return s, nil
}

// Read decodes collection name into v. A missing collection leaves v as is.
func (s *Store) Read(name string, v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.doc[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode collection %s: %w", name, err)
	}
	return nil
}

// Collections returns the names of all collections in the document.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.doc))
}

// Mutate replaces collection name with the value returned by fn and flushes
// the document. fn runs under the store lock. The in-memory document only
// changes once the flush has succeeded.
func (s *Store) Mutate(ctx context.Context, name string, fn func(current json.RawMessage) (json.RawMessage, error)) error {
	ctx, span := s.tracer.Start(ctx, "jsonfile.Mutate", trace.WithAttributes(attribute.String("store.collection", name)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.doc[name])
	if errors.Is(err, ErrNoChange) {
		span.SetAttributes(attribute.Bool("store.changed", false))
		return nil
	}
	if err != nil {
		return err
	}

	doc := maps.Clone(s.doc)
	doc[name] = next
	if err := s.flushLocked(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flush failed")
		return err
	}
	s.doc = doc
	span.SetAttributes(attribute.Bool("store.changed", true))
	return nil
}

// Flush writes the current document through the adapter.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx, s.doc)
}

// Reload re-reads the document from the adapter, discarding in-memory state.
func (s *Store) Reload(ctx context.Context) error {
	return s.reload(ctx, "manual")
}

// Check verifies the backing document is readable and well formed.
func (s *Store) Check(_ context.Context) error {
	data, err := s.adapter.Read()
	if err != nil {
		return err
	}
	_, err = decodeDocument(data)
	return err
}

// Watch reloads the document whenever its file is changed by another
// process. It blocks until ctx is cancelled. Only adapters exposing a file
// path can be watched.
func (s *Store) Watch(ctx context.Context) error {
	pathed, ok := s.adapter.(interface{ Path() string })
	if !ok {
		return ErrWatchUnsupported
	}
	path, err := filepath.Abs(pathed.Path())
	if err != nil {
		return fmt.Errorf("resolve document path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("document watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the inode, which drops a
	// watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("document watcher add %s: %w", dir, err)
	}
	s.logger.Info().Str("path", path).Msg("watching document for external changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(ctx, "watch"); err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("reload after external change failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("document watcher error")
		}
	}
}

func (s *Store) reload(ctx context.Context, trigger string) (err error) {
	_, span := s.tracer.Start(ctx, "jsonfile.Reload", trace.WithAttributes(attribute.String("store.trigger", trigger)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reading under the lock keeps a concurrent flush from being reverted.
	data, err := s.adapter.Read()
	if err != nil {
		metrics.RecordReload(trigger, err)
		return fmt.Errorf("reload document: %w", err)
	}
	if bytes.Equal(data, s.written) {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.Warn().Str("trigger", trigger).Msg("document empty or removed; keeping in-memory state")
		return nil
	}

	doc, err := decodeDocument(data)
	metrics.RecordReload(trigger, err)
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.doc = doc
	s.written = data
	s.logger.Info().Str("trigger", trigger).Int("collections", len(doc)).Msg("document reloaded")
	return nil
}

func (s *Store) flushLocked(ctx context.Context, doc map[string]json.RawMessage) error {
	start := time.Now()
	data, err := encodeDocument(doc)
	if err == nil {
		err = s.adapter.Write(data)
	}
	metrics.RecordFlush(start, err)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("document flush failed")
		return fmt.Errorf("flush document: %w", err)
	}
	s.written = data
	s.logger.Debug().Int("bytes", len(data)).Dur("duration", time.Since(start)).Msg("document flushed")
	return nil
}

func decodeDocument(data []byte) (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	return doc, nil
}

func encodeDocument(doc map[string]json.RawMessage) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}
