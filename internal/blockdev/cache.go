package blockdev

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
)

// Mode selects the buffer cache's write policy, set from the mount option
// string literal per spec.md §7 ("wtcache" selects write-through; any
// other option selects write-back).
type Mode int

const (
	WriteBack Mode = iota
	WriteThrough
)

// ModeFromOption maps a mount option string to a Mode.
func ModeFromOption(opt string) Mode {
	if opt == "wtcache" {
		return WriteThrough
	}
	return WriteBack
}

type entry struct {
	data  []byte
	dirty bool
}

// Cache is the page-granular buffered cache spec.md §1 names as part of
// the external BlockDev collaborator. MfsInstance owns one per mount.
type Cache struct {
	mu   sync.Mutex
	dev  BlockDev
	mode Mode

	blocks map[uint32]*entry

	hits   uint64
	misses uint64
}

// NewCache wraps dev with a buffered cache running in mode.
func NewCache(dev BlockDev, mode Mode) *Cache {
	return &Cache{dev: dev, mode: mode, blocks: make(map[uint32]*entry)}
}

// BSize delegates to the underlying device.
func (c *Cache) BSize() uint32 { return c.dev.BSize() }

// NBlocks delegates to the underlying device.
func (c *Cache) NBlocks() uint32 { return c.dev.NBlocks() }

// GetBlock returns the contents of block ba, reading through to the
// device on a miss. The returned slice is owned by the cache; callers
// that mutate it must call MarkDirty to persist the change (in
// write-through mode MarkDirty writes the block at once).
func (c *Cache) GetBlock(ba uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.blocks[ba]; ok {
		c.hits++
		return e.data, nil
	}
	c.misses++

	buf := make([]byte, c.dev.BSize())
	if err := c.dev.Read(ba, 1, buf); err != nil {
		return nil, err
	}
	c.blocks[ba] = &entry{data: buf}
	return buf, nil
}

// MarkDirty flags block ba as modified. In write-through mode this
// instead writes the block immediately.
func (c *Cache) MarkDirty(ba uint32) error {
	c.mu.Lock()
	e, ok := c.blocks[ba]
	if !ok {
		c.mu.Unlock()
		return mfserrors.New("blockdev.cache.mark_dirty", mfserrors.KindInvalidArg)
	}
	if c.mode == WriteThrough {
		data := e.data
		c.mu.Unlock()
		return c.dev.Write(ba, 1, data)
	}
	e.dirty = true
	c.mu.Unlock()
	return nil
}

// PutBlock stores data as the contents of block ba, marking it dirty (or
// writing through immediately per Mode).
func (c *Cache) PutBlock(ba uint32, data []byte) error {
	c.mu.Lock()
	buf := make([]byte, c.dev.BSize())
	copy(buf, data)
	c.blocks[ba] = &entry{data: buf, dirty: c.mode == WriteBack}
	mode := c.mode
	c.mu.Unlock()

	if mode == WriteThrough {
		return c.dev.Write(ba, 1, buf)
	}
	return nil
}

// FlushCache writes every dirty block to the device, accumulating every
// failure (rather than stopping at the first) via go.uber.org/multierr,
// the way MfsOps.unmount must report every flush failure (spec.md §4.5,
// §4.6).
func (c *Cache) FlushCache() error {
	c.mu.Lock()
	dirty := make(map[uint32][]byte)
	for ba, e := range c.blocks {
		if e.dirty {
			dirty[ba] = e.data
		}
	}
	c.mu.Unlock()

	var errs error
	for ba, data := range dirty {
		if err := c.dev.Write(ba, 1, data); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.mu.Lock()
		if e, ok := c.blocks[ba]; ok {
			e.dirty = false
		}
		c.mu.Unlock()
	}
	return errs
}

// InvalidateBlock drops ba from the cache without writing it back.
func (c *Cache) InvalidateBlock(ba uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.blocks, ba)
}

// Stats reports hit/miss counters for diagnostics.
type Stats struct {
	Hits, Misses uint64
	BlocksCached int
}

// Statistics returns the cache's current hit/miss/occupancy counters.
func (c *Cache) Statistics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, BlocksCached: len(c.blocks)}
}
