// Package bitmap implements the bit-addressed allocator MFS uses for both
// the inode and zone bitmaps (spec.md §4.2). Each Bitmap instance covers
// one contiguous run of blocks; MfsInstance holds one for inodes and one
// for zones.
package bitmap

import (
	"math/bits"
	"sync"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
	"github.com/deploymenttheory/go-minixfs/internal/mlog"
)

var log = mlog.For(mlog.SubsystemMFS)

// Kind distinguishes the inode bitmap from the zone bitmap. The only
// behavioral difference is that bit 0 of the inode bitmap is reserved
// (there is no inode 0) and Alloc never returns it (spec.md §4.2 edge
// case).
type Kind int

const (
	KindInode Kind = iota
	KindZone
)

// Bitmap is a word-granular (32-bit) allocator over a run of blocks.
type Bitmap struct {
	mu     sync.Mutex
	cache  *blockdev.Cache
	kind   Kind
	base   uint32 // first block of the bitmap
	blocks uint32 // number of blocks in the bitmap
	nbits  uint32 // total number of addressable bits
	search uint32 // rolling cursor
}

// New wraps the bitmap occupying [base, base+blocks) blocks of cache,
// addressing nbits total bits.
func New(cache *blockdev.Cache, kind Kind, base, blocks, nbits uint32) *Bitmap {
	start := uint32(0)
	if kind == KindInode {
		start = 1 // bit 0 is permanently allocated; never start the cursor there
	}
	return &Bitmap{cache: cache, kind: kind, base: base, blocks: blocks, nbits: nbits, search: start}
}

func wordsPerBlock(bsize uint32) uint32 { return bsize / 4 }

// Alloc returns the smallest free bit index >= the rolling cursor, marks
// it allocated, and advances the cursor. If none is found from the cursor
// to the end it restarts once from the start; still none is KindNoSpace
// (spec.md §4.2).
func (b *Bitmap) Alloc() (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, err := b.scanFrom(b.search)
	if err != nil {
		start := uint32(0)
		if b.kind == KindInode {
			start = 1
		}
		idx, err = b.scanFrom(start)
		if err != nil {
			return 0, mfserrors.New("bitmap.alloc", mfserrors.KindNoSpace)
		}
	}

	if err := b.setBit(idx); err != nil {
		return 0, err
	}
	b.search = idx + 1
	return idx, nil
}

func (b *Bitmap) scanFrom(start uint32) (uint32, error) {
	bsize := b.cache.BSize()
	wpb := wordsPerBlock(bsize)
	bitsPerBlock := wpb * 32

	if start >= b.nbits {
		return 0, mfserrors.New("bitmap.scan", mfserrors.KindNoSpace)
	}

	startBlock := start / bitsPerBlock
	for bi := startBlock; bi < b.blocks; bi++ {
		buf, err := b.cache.GetBlock(b.base + bi)
		if err != nil {
			return 0, mfserrors.Wrap("bitmap.scan", mfserrors.KindIO, err)
		}

		startWord := uint32(0)
		startBitInWord := uint32(0)
		if bi == startBlock {
			rel := start % bitsPerBlock
			startWord = rel / 32
			startBitInWord = rel % 32
		}

		for wi := startWord; wi < wpb; wi++ {
			off := wi * 4
			if off+4 > uint32(len(buf)) {
				break
			}
			word := uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
			if wi == startWord && startBitInWord > 0 {
				// Treat bits below the cursor's offset within this word
				// as allocated so they can't be selected.
				word |= (uint32(1) << startBitInWord) - 1
			}
			if word == 0xFFFFFFFF {
				continue
			}
			bitPos := bits.TrailingZeros32(^word)
			idx := bi*bitsPerBlock + wi*32 + uint32(bitPos)
			if idx >= b.nbits {
				continue
			}
			return idx, nil
		}
	}
	return 0, mfserrors.New("bitmap.scan", mfserrors.KindNoSpace)
}

func (b *Bitmap) blockAndOffset(idx uint32) (block uint32, byteOff uint32, bit uint32) {
	bsize := b.cache.BSize()
	bitsPerBlock := bsize * 8
	block = b.base + idx/bitsPerBlock
	rel := idx % bitsPerBlock
	byteOff = rel / 8
	bit = rel % 8
	return
}

func (b *Bitmap) setBit(idx uint32) error {
	block, byteOff, bit := b.blockAndOffset(idx)
	buf, err := b.cache.GetBlock(block)
	if err != nil {
		return mfserrors.Wrap("bitmap.alloc", mfserrors.KindIO, err)
	}
	buf[byteOff] |= 1 << bit
	return b.cache.MarkDirty(block)
}

// Free clears bit index, allowing it to be allocated again. index beyond
// the map fails KindInvalidArg. Clearing an already-free bit is allowed
// but logged (spec.md §4.2).
func (b *Bitmap) Free(index uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index >= b.nbits {
		return mfserrors.New("bitmap.free", mfserrors.KindInvalidArg)
	}

	block, byteOff, bit := b.blockAndOffset(index)
	buf, err := b.cache.GetBlock(block)
	if err != nil {
		return mfserrors.Wrap("bitmap.free", mfserrors.KindIO, err)
	}

	mask := byte(1 << bit)
	if buf[byteOff]&mask == 0 {
		log.WithField("index", index).Warn("freeing an already-clear bitmap bit")
	}
	buf[byteOff] &^= mask

	if index < b.search {
		b.search = index
	}
	return b.cache.MarkDirty(block)
}

// Search returns the bitmap's current rolling cursor, for SbInfo's
// isearch/zsearch fields (spec.md §3).
func (b *Bitmap) Search() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.search
}
