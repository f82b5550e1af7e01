package mfserrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndKindOf(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap("inode.decode", KindIO, cause)
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.True(t, Is(err, KindIO))
	assert.False(t, Is(err, KindBusy))
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap("op", KindIO, nil))
}

func TestNewHasNoCause(t *testing.T) {
	err := New("bitmap.alloc", KindNoSpace)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Nil(t, e.Err)
	assert.Equal(t, KindNoSpace, KindOf(err))
}

func TestUnwrapChain(t *testing.T) {
	root := errors.New("device offline")
	mid := Wrap("blockdev.read", KindIO, root)
	assert.ErrorIs(t, mid, root)
	assert.Equal(t, KindIO, KindOf(mid))
}

func TestKindOfNonMfsError(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(errors.New("plain")))
	assert.Equal(t, KindNone, KindOf(nil))
}

func TestKindStrings(t *testing.T) {
	kinds := []Kind{KindIO, KindNoSpace, KindNoMemory, KindInvalidArg, KindNotDir,
		KindNoEntry, KindExists, KindNotEmpty, KindBusy, KindNameTooLong,
		KindNotSupported, KindFileTooLarge, KindOverflow, KindNone}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], "duplicate Kind string %q", s)
		seen[s] = true
	}
}
