package volparts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/internal/mfs"
	"github.com/deploymenttheory/go-minixfs/internal/mkfs"
	"github.com/deploymenttheory/go-minixfs/internal/volumes"
)

func testConfig() *driverconfig.Config {
	return &driverconfig.Config{
		DefaultCacheMode: "wbcache",
		AutoMountATA:     false,
		AutoMountOther:   true,
	}
}

func TestProbeRecognizesMinix(t *testing.T) {
	dev := blockdev.NewMemDevice(1024, 4096)
	require.NoError(t, mkfs.WriteMinix(dev, mkfs.Options{}))

	info, content, err := Probe(dev)
	require.NoError(t, err)
	assert.Equal(t, PartFs, content)
	assert.Equal(t, FSMinix, info.FSType)
}

func TestProbeReportsEmptyDevice(t *testing.T) {
	dev := blockdev.NewMemDevice(1024, 16)
	_, content, err := Probe(dev)
	require.NoError(t, err)
	assert.Equal(t, PartEmpty, content)
}

func TestProbeRecognizesExt4Label(t *testing.T) {
	dev := blockdev.NewMemDevice(512, 8)
	buf := make([]byte, 512*8)
	// ext4 magic 0xEF53 little-endian at byte 1024+56.
	buf[1024+56] = 0x53
	buf[1024+57] = 0xEF
	copy(buf[1024+120:], []byte("mydata\x00\x00"))
	require.NoError(t, dev.Write(0, 8, buf))

	info, content, err := Probe(dev)
	require.NoError(t, err)
	assert.Equal(t, PartFs, content)
	assert.Equal(t, FSExt4, info.FSType)
	assert.Equal(t, "mydata", info.Label)
}

func TestDecideAutoMountSkipsEmptyLabel(t *testing.T) {
	d := Decide("", "", "disk0", FSMinix, testConfig())
	assert.False(t, d.Mount)
}

func TestDecideAutoMountDerivesVolPath(t *testing.T) {
	d := Decide("", "usbkey", "disk1", FSMinix, testConfig())
	assert.True(t, d.Mount)
	assert.Equal(t, "/vol/usbkey", d.Path)
	assert.True(t, d.Auto)
}

func TestDecideATADefaultSkipsAutoMount(t *testing.T) {
	d := Decide("", "usbkey", "ata0", FSMinix, testConfig())
	assert.False(t, d.Mount)
}

func TestDecideCDFSAlwaysAutoMountsOnATA(t *testing.T) {
	d := Decide("", "cdrom", "ata0", FSCDFS, testConfig())
	assert.True(t, d.Mount)
	assert.Equal(t, "/vol/cdrom", d.Path)
}

func TestDecideNoneNeverMounts(t *testing.T) {
	d := Decide("None", "usbkey", "disk1", FSMinix, testConfig())
	assert.False(t, d.Mount)
}

func TestPartAddProbesMinixButLeavesItUnmountedWithoutALabel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "volsrv.conf")

	dev := blockdev.NewMemDevice(1024, 4096)
	require.NoError(t, mkfs.WriteMinix(dev, mkfs.Options{}))

	vols := volumes.New(cfgPath)
	ops := mfs.NewOps()
	mgr := NewManager(vols, ops, testConfig())

	p, err := mgr.PartAdd(1, "disk0", dev)
	require.NoError(t, err)
	assert.Equal(t, FSMinix, p.FSType)
	assert.Empty(t, p.CurMP, "an empty-label MINIX image has no label to auto-mount under, so PartAdd alone leaves it unmounted")
}

func TestPartSetMountpMountsAtLiteralPath(t *testing.T) {
	dir := t.TempDir()
	mountDir := filepath.Join(dir, "mnt")
	require.NoError(t, os.MkdirAll(mountDir, 0o755))
	cfgPath := filepath.Join(dir, "volsrv.conf")

	dev := blockdev.NewMemDevice(1024, 4096)
	require.NoError(t, mkfs.WriteMinix(dev, mkfs.Options{Label: "usb"}))

	vols := volumes.New(cfgPath)
	ops := mfs.NewOps()
	mgr := NewManager(vols, ops, testConfig())

	_, err := mgr.PartAdd(1, "disk0", dev)
	require.NoError(t, err)

	// Minix carries no on-disk label, so PartAdd's own probe always
	// reports an empty label and nothing auto-mounts; set one explicitly
	// through SetMountp to exercise the literal-path branch.
	require.NoError(t, mgr.PartSetMountp(1, mountDir))

	info, err := mgr.PartInfo(1)
	require.NoError(t, err)
	assert.Equal(t, mountDir, info.CurMP)
	assert.False(t, info.CurMPAuto)
}
