package volumes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/volcfg"
)

func TestLookupRefCreatesThenReuses(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "volsrv.conf"))

	v1 := r.LookupRef("root")
	require.NotNil(t, v1)
	assert.EqualValues(t, 1, v1.Refcount())

	v2 := r.LookupRef("root")
	assert.Same(t, v1, v2)
	assert.EqualValues(t, 2, v1.Refcount())
}

func TestLookupRefEmptyLabelAlwaysCreates(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "volsrv.conf"))

	v1 := r.LookupRef("")
	v2 := r.LookupRef("")
	assert.NotSame(t, v1, v2)
}

func TestReleaseRemovesNonPersistentAtZero(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "volsrv.conf"))
	v := r.LookupRef("usb")
	r.Release(v)
	assert.Empty(t, r.All())
}

func TestReleaseKeepsPersistentVolume(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "volsrv.conf"))
	v := r.LookupRef("usb")
	require.NoError(t, r.SetMountp(v, "/mnt/usb"))

	r.Release(v)
	assert.Len(t, r.All(), 1, "a persistent volume survives its partition reference being released")
}

func TestSetMountpPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volsrv.conf")
	r := New(path)

	v := r.LookupRef("root")
	require.NoError(t, r.SetMountp(v, "/w"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `label="root"`)
	assert.Contains(t, string(data), `mountp="/w"`)

	reloaded, err := Load(path)
	require.NoError(t, err)
	persisted := reloaded.PersistentVolumes()
	require.Len(t, persisted, 1)
	assert.Equal(t, "root", persisted[0].Label)
	assert.Equal(t, "/w", persisted[0].Mountp)
}

func TestSetMountpEmptyDoesNotPersistEmptyLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volsrv.conf")
	r := New(path)

	v := r.LookupRef("")
	require.NoError(t, r.SetMountp(v, "/mnt/usb"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.PersistentVolumes(), "an empty-label volume is never reloadable by label lookup")
}

func TestMergeSkipsKnownLabels(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "volsrv.conf"))
	r.LookupRef("root")

	r.Merge([]volcfg.Entry{{Label: "root", Mountp: "/old"}, {Label: "data", Mountp: "/data"}})
	all := r.All()
	require.Len(t, all, 2)

	var rootMountp string
	for _, v := range all {
		if v.Label == "root" {
			rootMountp = v.Mountp
		}
	}
	assert.Empty(t, rootMountp, "merge must not overwrite an already-known label")
}
