package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager layers Memory over Disk. Disk hits are promoted into memory and a
// background sweep removes entries older than the TTL.
type Manager struct {
	l1     *Memory
	l2     *Disk
	config Config
	logger *log.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewManager opens the disk level in cfg.Dir and starts the sweep.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}

	l2, err := NewDisk(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}

	m := &Manager{
		l1:     NewMemory(cfg.MemoryCapacity),
		l2:     l2,
		config: cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}
	return m, nil
}

// Get looks in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		return data, true
	}
	data, ok := m.l2.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.l1.Put(key, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
		m.logger.Debug("Promotion failed", "err", err)
	}
	return data, true
}

// Put stores value on both levels. A value too large for memory is still
// kept on disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.l1.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	if err := m.l2.Put(key, value); err != nil {
		if errors.Is(err, ErrItemTooLarge) {
			return nil
		}
		return err
	}
	return nil
}

// Sweep removes expired entries from both levels.
func (m *Manager) Sweep() {
	if m.config.TTL <= 0 {
		return
	}
	memRemoved := m.l1.Prune(m.config.TTL)
	diskRemoved, err := m.l2.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	if err != nil {
		m.logger.Warn("Failed to save cache index", "err", err)
	}
	if memRemoved+diskRemoved > 0 {
		m.logger.Debug("Expired cache entries", "memory", memRemoved, "disk", diskRemoved)
	}
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	m.l1.Clear()
	if err := m.l2.Clear(); err != nil {
		return fmt.Errorf("failed to clear disk cache: %w", err)
	}
	return nil
}

// Stats returns the counters of the memory and disk levels.
func (m *Manager) Stats() (memory, disk Stats) {
	return m.l1.Stats(), m.l2.Stats()
}

// Close stops the sweep and saves the disk index.
func (m *Manager) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
	return m.l2.Close()
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}
