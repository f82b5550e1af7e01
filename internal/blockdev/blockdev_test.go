package blockdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMemDevice(1024, 8)
	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = byte(i)
	}

	require.NoError(t, dev.Write(3, 1, buf))

	out := make([]byte, 1024)
	require.NoError(t, dev.Read(3, 1, out))
	assert.Equal(t, buf, out)
}

func TestMemDeviceRangeValidation(t *testing.T) {
	dev := NewMemDevice(1024, 4)
	buf := make([]byte, 1024)
	assert.Error(t, dev.Read(4, 1, buf), "reading past the end must fail")
	assert.Error(t, dev.Write(0, 0, buf), "zero-count access must fail")
}

func TestCacheHitAfterMiss(t *testing.T) {
	dev := NewMemDevice(512, 4)
	c := NewCache(dev, WriteBack)

	_, err := c.GetBlock(1)
	require.NoError(t, err)
	_, err = c.GetBlock(1)
	require.NoError(t, err)

	stats := c.Statistics()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestCacheWriteBackDeferred(t *testing.T) {
	dev := NewMemDevice(512, 4)
	c := NewCache(dev, WriteBack)

	require.NoError(t, c.PutBlock(2, make([]byte, 512)))

	raw := make([]byte, 512)
	require.NoError(t, dev.Read(2, 1, raw))
	for _, b := range raw {
		assert.Equal(t, byte(0), b, "write-back must not reach the device before FlushCache")
	}

	data := make([]byte, 512)
	data[0] = 0xAB
	require.NoError(t, c.PutBlock(2, data))
	require.NoError(t, c.MarkDirty(2))
	require.NoError(t, c.FlushCache())

	require.NoError(t, dev.Read(2, 1, raw))
	assert.Equal(t, byte(0xAB), raw[0])
}

func TestCacheWriteThroughImmediate(t *testing.T) {
	dev := NewMemDevice(512, 4)
	c := NewCache(dev, WriteThrough)

	data := make([]byte, 512)
	data[1] = 0xCD
	require.NoError(t, c.PutBlock(0, data))

	raw := make([]byte, 512)
	require.NoError(t, dev.Read(0, 1, raw))
	assert.Equal(t, byte(0xCD), raw[1])
}

func TestModeFromOption(t *testing.T) {
	assert.Equal(t, WriteThrough, ModeFromOption("wtcache"))
	assert.Equal(t, WriteBack, ModeFromOption(""))
	assert.Equal(t, WriteBack, ModeFromOption("anything"))
}

func TestInvalidateBlock(t *testing.T) {
	dev := NewMemDevice(512, 4)
	c := NewCache(dev, WriteBack)
	_, err := c.GetBlock(0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Statistics().BlocksCached)
	c.InvalidateBlock(0)
	assert.Equal(t, 0, c.Statistics().BlocksCached)
}
