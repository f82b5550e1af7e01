package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

func newTestCodec(t *testing.T, version types.Version, native bool) *Codec {
	t.Helper()
	dev := blockdev.NewMemDevice(1024, 32)
	cache := blockdev.NewCache(dev, blockdev.WriteBack)
	inoPerBlock := 1024 / types.RawInodeSize(version)
	return New(cache, 5, inoPerBlock, 64, version, native)
}

func sampleV1(index uint32) *Info {
	info := &Info{
		Mode: types.ModeReg | 0644, Nlinks: 2, Uid: 12, Gid: 34,
		Size: 4096, Mtime: 1000,
		Index: index,
	}
	for i := range info.Dzone {
		info.Dzone[i] = uint32(10 + i)
	}
	info.Izone[0] = 99
	info.Izone[1] = 100
	return info
}

func sampleV2V3(index uint32) *Info {
	info := sampleV1(index)
	info.Atime = 111
	info.Ctime = 222
	return info
}

func TestInodeRoundTripV1(t *testing.T) {
	codec := newTestCodec(t, types.V1, true)
	want := sampleV1(3)
	require.NoError(t, codec.Encode(want))

	got, err := codec.Decode(3)
	require.NoError(t, err)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Uid, got.Uid)
	assert.Equal(t, want.Gid, got.Gid)
	assert.Equal(t, want.Nlinks, got.Nlinks)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, want.Mtime, got.Mtime)
	assert.Equal(t, want.Dzone, got.Dzone)
	assert.Equal(t, want.Izone, got.Izone)
	// v1 has no atime/ctime on disk.
	assert.Equal(t, uint32(0), got.Atime)
	assert.Equal(t, uint32(0), got.Ctime)
}

func TestInodeRoundTripV2(t *testing.T) {
	codec := newTestCodec(t, types.V2, true)
	want := sampleV2V3(7)
	require.NoError(t, codec.Encode(want))

	got, err := codec.Decode(7)
	require.NoError(t, err)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Nlinks, got.Nlinks)
	assert.Equal(t, want.Uid, got.Uid)
	assert.Equal(t, want.Gid, got.Gid)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, want.Atime, got.Atime)
	assert.Equal(t, want.Mtime, got.Mtime)
	assert.Equal(t, want.Ctime, got.Ctime)
	assert.Equal(t, want.Dzone, got.Dzone)
	assert.Equal(t, want.Izone, got.Izone)
}

func TestInodeRoundTripV3Reversed(t *testing.T) {
	codec := newTestCodec(t, types.V3, false)
	want := sampleV2V3(1)
	require.NoError(t, codec.Encode(want))

	got, err := codec.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, want.Dzone, got.Dzone)
}

func TestInodeDecodeInvalidIndexZero(t *testing.T) {
	codec := newTestCodec(t, types.V1, true)
	_, err := codec.Decode(0)
	assert.Error(t, err)
}

func TestInodeDecodeInvalidIndexTooLarge(t *testing.T) {
	codec := newTestCodec(t, types.V1, true)
	_, err := codec.Decode(1000)
	assert.Error(t, err)
}

func TestInodeEncodeInvalidIndex(t *testing.T) {
	codec := newTestCodec(t, types.V1, true)
	err := codec.Encode(&Info{Index: 0})
	assert.Error(t, err)
}

func TestInodeFreeZeroesSlot(t *testing.T) {
	codec := newTestCodec(t, types.V1, true)
	want := sampleV1(2)
	require.NoError(t, codec.Encode(want))
	require.NoError(t, codec.Free(2))

	got, err := codec.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), got.Mode)
	assert.Equal(t, uint32(0), got.Size)
}

func TestInodeIsDir(t *testing.T) {
	info := &Info{Mode: types.ModeDir | 0755}
	assert.True(t, info.IsDir())

	reg := &Info{Mode: types.ModeReg | 0644}
	assert.False(t, reg.IsDir())
}

func TestInodeDistinctSlotsDontOverlap(t *testing.T) {
	codec := newTestCodec(t, types.V2, true)
	a := sampleV2V3(1)
	a.Size = 111
	b := sampleV2V3(2)
	b.Size = 222
	require.NoError(t, codec.Encode(a))
	require.NoError(t, codec.Encode(b))

	gotA, err := codec.Decode(1)
	require.NoError(t, err)
	gotB, err := codec.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(111), gotA.Size)
	assert.Equal(t, uint32(222), gotB.Size)
}
