package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
)

func newTestBitmap(t *testing.T, kind Kind, nbits uint32) *Bitmap {
	t.Helper()
	dev := blockdev.NewMemDevice(64, 4) // tiny 64-byte blocks -> 512 bits/block
	cache := blockdev.NewCache(dev, blockdev.WriteBack)
	return New(cache, kind, 0, 4, nbits)
}

func TestInodeBitmapNeverReturnsBitZero(t *testing.T) {
	bm := newTestBitmap(t, KindInode, 100)
	idx, err := bm.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, uint32(0), idx)
	assert.Equal(t, uint32(1), idx)
}

func TestZoneBitmapCanReturnBitZero(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 100)
	idx, err := bm.Alloc()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
}

func TestAllocAdvancesAndIsUnique(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 200)
	seen := map[uint32]bool{}
	for i := 0; i < 50; i++ {
		idx, err := bm.Alloc()
		require.NoError(t, err)
		assert.False(t, seen[idx], "index %d allocated twice", idx)
		seen[idx] = true
	}
}

func TestFreeThenReallocate(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 64)
	idx, err := bm.Alloc()
	require.NoError(t, err)
	require.NoError(t, bm.Free(idx))

	// Cursor rewinds to the freed index so it's reused before advancing.
	again, err := bm.Alloc()
	require.NoError(t, err)
	assert.Equal(t, idx, again)
}

func TestAllocExhaustion(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 8)
	for i := 0; i < 8; i++ {
		_, err := bm.Alloc()
		require.NoError(t, err)
	}
	_, err := bm.Alloc()
	assert.Error(t, err)
}

func TestFreeOutOfRangeFails(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 16)
	assert.Error(t, bm.Free(1000))
}

func TestFreeAlreadyClearIsAllowed(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 16)
	assert.NoError(t, bm.Free(3)) // never allocated, but freeing is still allowed
}

func TestAllocReusesFreedIndexAfterExhaustion(t *testing.T) {
	bm := newTestBitmap(t, KindZone, 40)
	// Drain everything, then free a low index: Free rewinds the search
	// cursor to it, so the next alloc returns it instead of failing.
	var allocated []uint32
	for i := 0; i < 40; i++ {
		idx, err := bm.Alloc()
		require.NoError(t, err)
		allocated = append(allocated, idx)
	}
	require.NoError(t, bm.Free(allocated[2]))
	idx, err := bm.Alloc()
	require.NoError(t, err)
	assert.Equal(t, allocated[2], idx)
}
