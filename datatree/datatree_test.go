package datatree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holium/blockstore"
)

func newStore(t *testing.T) *blockstore.Store {
	t.Helper()
	s, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRoundTripScalarArray(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// [1, 2] as holium cbor: array header (major 4, count 2) then two
	// inline uints.
	input := []byte{0x82, 0x01, 0x02}

	c, err := Write(ctx, s, input)
	require.NoError(t, err)

	back, err := Read(ctx, s, c)
	require.NoError(t, err)
	assert.Equal(t, input, back)
}

func TestRoundTripNestedArray(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// [[1], []] : outer array of two elements, first a one-element array,
	// second an empty array.
	input := []byte{0x82, 0x81, 0x01, 0x80}

	c, err := Write(ctx, s, input)
	require.NoError(t, err)

	back, err := Read(ctx, s, c)
	require.NoError(t, err)
	assert.Equal(t, input, back)
}

// TestSingleScalarRootYieldsTwoBlocks covers the data-tree boundary case: the
// one scalar yields two blocks, a scalar-data block and its envelope, and the
// root array wraps them in a recursive-data block and its envelope.
func TestSingleScalarRootYieldsTwoBlocks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	input := []byte{0x81, 0x00} // [0]

	c, err := Write(ctx, s, input)
	require.NoError(t, err)

	env, err := blockstore.GetRecursiveDataEnvelope(ctx, s, c)
	require.NoError(t, err)
	rec, err := blockstore.GetRecursiveData(ctx, s, env.Content)
	require.NoError(t, err)
	require.Len(t, rec.Elements, 1)

	scalarEnv, err := blockstore.GetScalarDataEnvelope(ctx, s, rec.Elements[0])
	require.NoError(t, err)
	raw, err := s.GetRaw(ctx, scalarEnv.Content)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, raw)
}

func TestRoundTripEmptyArray(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	input := []byte{0x80} // []

	c, err := Write(ctx, s, input)
	require.NoError(t, err)

	back, err := Read(ctx, s, c)
	require.NoError(t, err)
	assert.Equal(t, input, back)
}

func TestReadUnknownDiscriminantRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// A raw dag-cbor block is neither a scalar-data nor a recursive-data
	// envelope, so Read must reject it.
	raw, err := s.PutRaw(ctx, 0x71, []byte{0x80})
	require.NoError(t, err)

	_, err = Read(ctx, s, raw)
	assert.Error(t, err)
}
