package jsonfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Adapter reads and writes the raw bytes of a document.
type Adapter interface {
	// Read returns the stored document, or nil with no error when nothing
	// has been stored yet.
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileAdapter stores the document in a single file on disk. Writes go to a
// temporary file in the same directory which is then renamed over the
// target, so readers never observe a partially written document.
type FileAdapter struct {
	path string
}

func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Path returns the file the adapter reads and writes.
func (a *FileAdapter) Path() string {
	return a.path
}

func (a *FileAdapter) Read() ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.path, err)
	}
	return data, nil
}

func (a *FileAdapter) Write(data []byte) (err error) {
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), a.path); err != nil {
		return fmt.Errorf("replace %s: %w", a.path, err)
	}
	return nil
}

// MemoryAdapter keeps the document in memory. It is used in tests and for
// running the server without a backing file.
type MemoryAdapter struct {
	mu       sync.Mutex
	data     []byte
	writes   int
	writeErr error
}

func NewMemoryAdapter(initial []byte) *MemoryAdapter {
	return &MemoryAdapter{data: bytes.Clone(initial)}
}

func (a *MemoryAdapter) Read() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bytes.Clone(a.data), nil
}

func (a *MemoryAdapter) Write(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writeErr != nil {
		return a.writeErr
	}
	a.data = bytes.Clone(data)
	a.writes++
	return nil
}

// FailWrites makes subsequent writes return err. Pass nil to recover.
func (a *MemoryAdapter) FailWrites(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writeErr = err
}

// Writes returns the number of successful writes.
func (a *MemoryAdapter) Writes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writes
}
