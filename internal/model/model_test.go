package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusDone.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, DocumentStatus("ARCHIVED").Valid())
}

func TestVector_ScanAcceptsDriverTypes(t *testing.T) {
	var v Vector
	require.NoError(t, v.Scan([]byte("[0.5,1]")))
	assert.Equal(t, Vector{0.5, 1}, v)

	require.NoError(t, v.Scan("[2]"))
	assert.Equal(t, Vector{2}, v)

	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)

	assert.Error(t, v.Scan(42))
	assert.Error(t, v.Scan("not json"))
}

func TestVector_ValueOfNilIsEmptyArray(t *testing.T) {
	val, err := Vector(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", val)
}
