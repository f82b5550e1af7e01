package zonemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/bitmap"
	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/inode"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

func newTestZoneMap(t *testing.T, version types.Version) (*ZoneMap, *bitmap.Bitmap) {
	t.Helper()
	dev := blockdev.NewMemDevice(1024, 4096)
	cache := blockdev.NewCache(dev, blockdev.WriteBack)
	zbm := bitmap.New(cache, bitmap.KindZone, 0, 4, 2048)
	zm := New(cache, zbm, version, true, 4)
	return zm, zbm
}

func TestDirectZoneAllocateThenResolve(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	phys, err := zm.Allocate(info, 3)
	require.NoError(t, err)
	assert.NotEqual(t, uint32(0), phys)
	assert.Equal(t, phys, info.Dzone[3])

	resolved, err := zm.Resolve(info, 3)
	require.NoError(t, err)
	assert.Equal(t, phys, resolved)
}

func TestResolveHoleReturnsZeroWithoutAllocating(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	phys, err := zm.Resolve(info, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), phys)
	assert.Equal(t, uint32(0), info.Dzone[2])
}

func TestAllocateIsIdempotentForSameZone(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	first, err := zm.Allocate(info, 0)
	require.NoError(t, err)
	second, err := zm.Allocate(info, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSingleIndirectAllocateThenResolve(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	// perZone for v2 at 1024-byte blocks with 4-byte pointers is 256, so
	// logical zone NumDirectZones+5 lands in the single-indirect range.
	rel := uint32(types.NumDirectZones + 5)
	phys, err := zm.Allocate(info, rel)
	require.NoError(t, err)
	assert.NotEqual(t, uint32(0), phys)
	assert.NotEqual(t, uint32(0), info.Izone[0])

	resolved, err := zm.Resolve(info, rel)
	require.NoError(t, err)
	assert.Equal(t, phys, resolved)
}

func TestDoubleIndirectAllocateThenResolve(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	rel := uint32(types.NumDirectZones) + zm.perZone + 10
	phys, err := zm.Allocate(info, rel)
	require.NoError(t, err)
	assert.NotEqual(t, uint32(0), phys)
	assert.NotEqual(t, uint32(0), info.Izone[1])

	resolved, err := zm.Resolve(info, rel)
	require.NoError(t, err)
	assert.Equal(t, phys, resolved)
}

func TestAllocateBeyondCapacityFails(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	huge := uint32(types.NumDirectZones) + zm.perZone + zm.perZone*zm.perZone
	_, err := zm.Allocate(info, huge)
	assert.Error(t, err)
}

func TestShrinkFreesDirectZonesAboveKeep(t *testing.T) {
	zm, zbm := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	for i := uint32(0); i < types.NumDirectZones; i++ {
		_, err := zm.Allocate(info, i)
		require.NoError(t, err)
	}

	require.NoError(t, zm.Shrink(info, 3))
	for i := uint32(0); i < 3; i++ {
		assert.NotEqual(t, uint32(0), info.Dzone[i])
	}
	for i := uint32(3); i < types.NumDirectZones; i++ {
		assert.Equal(t, uint32(0), info.Dzone[i])
	}

	// A freed zone should be reusable by a later allocation.
	reused, err := zbm.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, uint32(0), reused)
}

func TestFirstdatazoneOffsetsPhysicalZoneNumbers(t *testing.T) {
	dev := blockdev.NewMemDevice(1024, 4096)
	cache := blockdev.NewCache(dev, blockdev.WriteBack)
	zbm := bitmap.New(cache, bitmap.KindZone, 0, 4, 2048)
	const firstdatazone = 100
	zm := New(cache, zbm, types.V2, true, firstdatazone)
	info := &inode.Info{Index: 1}

	phys, err := zm.Allocate(info, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, phys, uint32(firstdatazone))
}

func TestShrinkToZeroFreesSingleIndirectZone(t *testing.T) {
	zm, _ := newTestZoneMap(t, types.V2)
	info := &inode.Info{Index: 1}

	rel := uint32(types.NumDirectZones + 2)
	_, err := zm.Allocate(info, rel)
	require.NoError(t, err)
	require.NotEqual(t, uint32(0), info.Izone[0])

	require.NoError(t, zm.Shrink(info, 0))
	assert.Equal(t, uint32(0), info.Izone[0])
	for _, dz := range info.Dzone {
		assert.Equal(t, uint32(0), dz)
	}
}
