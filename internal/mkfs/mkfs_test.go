package mkfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/mfs"
	"github.com/deploymenttheory/go-minixfs/internal/types"
)

func TestWriteMinixProducesMountableRootDirectory(t *testing.T) {
	dev := blockdev.NewMemDevice(1024, 4096)
	require.NoError(t, WriteMinix(dev, Options{}))

	ops := mfs.NewOps()
	inst, err := ops.Mount(1, dev, "wbcache")
	require.NoError(t, err)

	root, err := mfs.RootGet(inst)
	require.NoError(t, err)
	require.True(t, root.Info.IsDir())
	require.Equal(t, uint32(types.RootInode), root.Info.Index)

	entry, _, err := mfs.ReadDirEntry(inst, root, 0)
	require.NoError(t, err)
	require.Equal(t, ".", entry.Name)

	require.NoError(t, mfs.NodePut(inst, root))
	require.NoError(t, ops.Unmount(1))
}
