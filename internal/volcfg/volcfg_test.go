package volcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
)

func TestLoadMissingFileIsEmptySet(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "missing.xml"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.xml")
	want := []Entry{
		{Label: "data", Mountp: "/mnt/data"},
		{Label: "", Mountp: ""},
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadEmptyFileIsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xml")
	require.NoError(t, writeFile(path, ""))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadRejectsWrongFirstRootChild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.xml")
	require.NoError(t, writeFile(path, `<root><nope label="x"/></root>`))

	_, err := Load(path)
	assert.True(t, mfserrors.Is(err, mfserrors.KindIO))
}

func TestLoadRejectsMalformedXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "malformed.xml")
	require.NoError(t, writeFile(path, `<root><volumes><volume label="a"</volumes></root>`))

	_, err := Load(path)
	assert.True(t, mfserrors.Is(err, mfserrors.KindIO))
}

func TestLoadRootWithNoChildrenIsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.xml")
	require.NoError(t, writeFile(path, `<root></root>`))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
