// Package artifact installs voice models and their sidecar configs into a
// durable store, fetching only what is missing.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
)

// Ref names one installed file: <locale>/<voice>/<file>.
type Ref struct {
	Locale string
	Voice  string
	File   string
}

func (r Ref) String() string {
	return path.Join(r.Locale, r.Voice, r.File)
}

// Store is a durable cache of voice artifacts keyed by Ref.
type Store interface {
	// Contains reports whether the file is fully present.
	Contains(ref Ref) bool

	// Insert stores the bytes written by fill. A failed fill leaves no
	// partial file behind.
	Insert(ctx context.Context, ref Ref, fill func(w io.Writer) error) error

	// Open returns the stored bytes.
	Open(ref Ref) (io.ReadCloser, error)

	// Locate returns the path under which the file is stored.
	Locate(ref Ref) string
}

// DiskStore keeps artifacts under Root/<locale>/<voice>/<file>.
type DiskStore struct {
	Root string
}

// NewDiskStore returns a store rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{Root: dir}
}

// Locate implements Store.
func (s *DiskStore) Locate(ref Ref) string {
	return filepath.Join(s.Root, ref.Locale, ref.Voice, ref.File)
}

// Contains implements Store.
func (s *DiskStore) Contains(ref Ref) bool {
	info, err := os.Stat(s.Locate(ref))
	return err == nil && info.Mode().IsRegular()
}

// Open implements Store.
func (s *DiskStore) Open(ref Ref) (io.ReadCloser, error) {
	return os.Open(s.Locate(ref))
}

// Insert writes to a temp file in the target directory and renames it into
// place once fill succeeds.
func (s *DiskStore) Insert(ctx context.Context, ref Ref, fill func(w io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := s.Locate(ref)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create voice directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+ref.File+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", ref.File, err)
	}

	committed = true
	return nil
}

// MemoryStore is an in-process Store. Locate returns a synthetic path.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[Ref][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[Ref][]byte)}
}

// Locate implements Store.
func (s *MemoryStore) Locate(ref Ref) string {
	return "mem://" + ref.String()
}

// Contains implements Store.
func (s *MemoryStore) Contains(ref Ref) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[ref]
	return ok
}

// Open implements Store.
func (s *MemoryStore) Open(ref Ref) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[ref]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: s.Locate(ref), Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, ref Ref, fill func(w io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := fill(&buf); err != nil {
		return err
	}
	s.Put(ref, buf.Bytes())
	return nil
}

// Put stores data directly.
func (s *MemoryStore) Put(ref Ref, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[ref] = append([]byte(nil), data...)
}

// Refs lists the stored refs in path order.
func (s *MemoryStore) Refs() []Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]Ref, 0, len(s.files))
	for r := range s.files {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs
}
