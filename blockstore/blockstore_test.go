package blockstore

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holium/multiformats"
)

func TestPutGetRawRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("hello world")
	c, err := s.PutRaw(ctx, multiformats.CodecRaw, content)
	require.NoError(t, err)

	back, err := s.GetRaw(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, content, back)
}

func TestPutRawIsIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("same content")
	c1, err := s.PutRaw(ctx, multiformats.CodecRaw, content)
	require.NoError(t, err)
	c2, err := s.PutRaw(ctx, multiformats.CodecRaw, content)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestGetRawMissingBlock(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	other, err := Open(t.TempDir())
	require.NoError(t, err)
	c, err := other.PutRaw(ctx, multiformats.CodecRaw, []byte("x"))
	require.NoError(t, err)

	_, err = s.GetRaw(ctx, c)
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestHas(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	c, err := s.PutRaw(ctx, multiformats.CodecRaw, []byte("abc"))
	require.NoError(t, err)

	ok, err := s.Has(c)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPutWasmBytecodeRejectsBadMagic(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.PutWasmBytecode(ctx, []byte("not wasm"))
	assert.ErrorIs(t, err, ErrBadWasmMagic)
}

func TestPutWasmBytecodeAcceptsMagic(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	bytecode := append([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, []byte("rest")...)
	c, err := s.PutWasmBytecode(ctx, bytecode)
	require.NoError(t, err)

	back, err := s.GetRaw(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, bytecode, back)
}

func TestMetadataRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	schemaIn, schemaOut := `{"type":"object"}`, `{"type":"object"}`
	c, err := PutMetadata(ctx, s, Metadata{Name: "transformation:t", SchemaIn: &schemaIn, SchemaOut: &schemaOut})
	require.NoError(t, err)

	m, err := GetMetadata(ctx, s, c)
	require.NoError(t, err)
	assert.Equal(t, "transformation:t", m.Name)
	require.NotNil(t, m.SchemaIn)
	assert.Equal(t, schemaIn, *m.SchemaIn)
	assert.Nil(t, m.Schema)
}

func TestGetMetadataRejectsWrongDiscriminant(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	bytecode := []byte{0x00, 0x61, 0x73, 0x6d}
	bcCID, err := s.PutWasmBytecode(ctx, bytecode)
	require.NoError(t, err)
	mbeCID, err := PutModuleBytecodeEnvelope(ctx, s, bcCID)
	require.NoError(t, err)

	_, err = GetMetadata(ctx, s, mbeCID)
	var discErr ErrUnknownDiscriminant
	assert.ErrorAs(t, err, &discErr)
}

func TestDryTransformationRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	bytecode := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	bcCID, err := s.PutWasmBytecode(ctx, bytecode)
	require.NoError(t, err)
	mbeCID, err := PutModuleBytecodeEnvelope(ctx, s, bcCID)
	require.NoError(t, err)
	dtCID, err := PutDryTransformation(ctx, s, mbeCID, "add_one")
	require.NoError(t, err)

	dt, err := GetDryTransformation(ctx, s, dtCID)
	require.NoError(t, err)
	assert.Equal(t, mbeCID, dt.ModuleBytecodeEnvelope)
	assert.Equal(t, "add_one", dt.Handle)
}

func TestConnectionRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	tail, err := s.PutRaw(ctx, multiformats.CodecDagCBOR, []byte{0x80})
	require.NoError(t, err)
	head, err := s.PutRaw(ctx, multiformats.CodecDagCBOR, []byte{0x80})
	require.NoError(t, err)

	connCID, err := PutConnection(ctx, s, tail, head)
	require.NoError(t, err)

	conn, err := GetConnection(ctx, s, connCID)
	require.NoError(t, err)
	assert.Equal(t, tail, conn.TailSelector)
	assert.Equal(t, head, conn.HeadSelector)
}

func TestRecursiveDataRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	c1, err := s.PutRaw(ctx, multiformats.CodecDagCBOR, []byte{0x01})
	require.NoError(t, err)
	c2, err := s.PutRaw(ctx, multiformats.CodecDagCBOR, []byte{0x02})
	require.NoError(t, err)

	elements := []cid.Cid{c1, c2}
	recCID, err := PutRecursiveData(ctx, s, elements)
	require.NoError(t, err)

	rec, err := GetRecursiveData(ctx, s, recCID)
	require.NoError(t, err)
	assert.Equal(t, elements, rec.Elements)
}
