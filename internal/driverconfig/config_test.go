package driverconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wbcache", cfg.DefaultCacheMode)
	assert.False(t, cfg.AutoMountATA)
	assert.True(t, cfg.AutoMountOther)
	assert.Equal(t, "/w/cfg/volsrv.conf", cfg.ConfigStorePath)
}

func TestWriteThrough(t *testing.T) {
	assert.True(t, WriteThrough("wtcache"))
	assert.False(t, WriteThrough("wbcache"))
	assert.False(t, WriteThrough(""))
	assert.False(t, WriteThrough("anything-else"))
}
