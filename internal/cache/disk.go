package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// Disk is a persistent cache. Values are zstd-compressed when that makes
// them smaller and written with a temp file and rename, so a crash never
// leaves a torn entry. The index is saved on Close and after every sweep.
type Disk struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	Key        string
	File       string
	Size       int64
	Stored     time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDisk opens or creates a cache in dir holding at most capacity bytes on
// disk. A missing or unreadable index starts the cache empty.
func NewDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if level <= 0 {
		level = 3
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		encoder:  enc,
		decoder:  dec,
		index:    make(map[string]*diskEntry),
	}
	if err := d.loadIndex(); err != nil {
		d.index = make(map[string]*diskEntry)
	}
	for _, e := range d.index {
		d.size += e.Size
	}
	return d, nil
}

// Get reads and decompresses a value. Entries whose file vanished or is
// corrupt are dropped.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(e.File)
	if err == nil && e.Compressed {
		data, err = d.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		d.drop(key)
		d.stats.Misses++
		return nil, false
	}

	e.LastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put stores value, evicting least recently accessed entries to make room.
func (d *Disk) Put(key string, value []byte) error {
	data := value
	compressed := false
	if packed := d.encoder.EncodeAll(value, nil); len(packed) < len(value) {
		data, compressed = packed, true
	}

	n := int64(len(data))
	if n > d.capacity {
		return ErrItemTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[key]; ok {
		d.drop(key)
	}
	for d.size+n > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	path := d.path(key)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		Key:        key,
		File:       path,
		Size:       n,
		Stored:     now,
		LastAccess: now,
		Compressed: compressed,
	}
	d.size += n
	return nil
}

// Clear removes every entry and saves the empty index.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.index {
		d.drop(key)
	}
	return d.saveIndex()
}

// RemoveOlderThan drops entries stored before cutoff and saves the index.
func (d *Disk) RemoveOlderThan(cutoff time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, e := range d.index {
		if e.Stored.Before(cutoff) {
			d.drop(key)
			removed++
		}
	}
	return removed, d.saveIndex()
}

// Stats returns a snapshot of the counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Capacity = d.capacity
	s.Size = d.size
	s.Items = len(d.index)
	return s
}

// Close saves the index and releases the codecs.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.saveIndex()
	d.decoder.Close()
	if cerr := d.encoder.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *Disk) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(hash[:16])+".cache")
}

func (d *Disk) drop(key string) {
	e := d.index[key]
	_ = os.Remove(e.File)
	d.size -= e.Size
	delete(d.index, key)
}

func (d *Disk) evictOldest() {
	var oldest *diskEntry
	for _, e := range d.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		d.drop(oldest.Key)
		d.stats.Evictions++
	}
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var index map[string]*diskEntry
	if err := gob.NewDecoder(f).Decode(&index); err != nil {
		return err
	}
	// Forget entries whose files were removed behind our back.
	for key, e := range index {
		if _, err := os.Stat(e.File); err != nil {
			delete(index, key)
		}
	}
	d.index = index
	return nil
}

func (d *Disk) saveIndex() error {
	f, err := os.CreateTemp(d.dir, indexFile+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	err = gob.NewEncoder(f).Encode(d.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(d.dir, indexFile))
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
