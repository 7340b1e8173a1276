// Package cache keeps synthesized phrases so repeated text is not sent to
// the engine again. An in-memory LRU (L1) sits in front of a zstd-compressed
// on-disk store (L2) that survives restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrItemTooLarge is returned when a value exceeds a level's capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Stats holds counters for one cache level.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate is hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config sizes the cache levels.
type Config struct {
	Dir              string
	MemoryCapacity   int64
	DiskCapacity     int64
	CompressionLevel int
	TTL              time.Duration

	// CleanupInterval is how often expired disk entries are removed. Zero
	// disables the background sweep.
	CleanupInterval time.Duration
}

// DefaultConfig returns the sizes used when nothing is configured.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		MemoryCapacity:   32 << 20,
		DiskCapacity:     256 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Key identifies a phrase rendered by one voice and speaker. engine is the
// synthesizer's fingerprint, so audio made with other settings never matches.
func Key(engine, locale, voice string, speaker *int, phrase string) string {
	sp := "-"
	if speaker != nil {
		sp = strconv.Itoa(*speaker)
	}
	data := strings.Join([]string{engine, locale, voice, sp, phrase}, "|")
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
