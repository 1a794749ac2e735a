package multiformats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCIDBytesDeterministic(t *testing.T) {
	c1, err := ComputeCIDBytes(CodecDagCBOR, []byte{0xF6})
	require.NoError(t, err)
	c2, err := ComputeCIDBytes(CodecDagCBOR, []byte{0xF6})
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Equal(t, uint64(CIDVersion), c1.Version())
}

func TestComputeCIDScenario1NullScalar(t *testing.T) {
	// spec §8 scenario 1: CBOR null (0xF6) hashed under the cbor multicodec
	// (0x51, the "bafir4i" prefix) must produce this exact textual CID.
	c, err := ComputeCIDBytes(0x51, []byte{0xF6})
	require.NoError(t, err)
	assert.Equal(t, "bafir4idbvg7rb4h75xd5y52ytlrkwtfibmagzadomy3oig3aiegnr4f3yq", c.String())
}

func TestCIDToShardPathScenario1(t *testing.T) {
	c, err := ComputeCIDBytes(0x51, []byte{0xF6})
	require.NoError(t, err)
	rel, err := CIDToShardPath(c)
	require.NoError(t, err)
	assert.Equal(t, "3y/afir4idbvg7rb4h75xd5y52ytlrkwtfibmagzadomy3oig3aiegnr4f3yq", rel)
}

func TestShardPathRoundTrip(t *testing.T) {
	c, err := ComputeCIDBytes(CodecDagCBOR, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	rel, err := CIDToShardPath(c)
	require.NoError(t, err)
	shardDir := rel[:2]
	fileName := rel[3:]
	back, err := ShardPathToCID(shardDir, fileName)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestShardPathToCIDRejectsMismatchedShard(t *testing.T) {
	c, err := ComputeCIDBytes(CodecDagCBOR, []byte{0x01})
	require.NoError(t, err)
	rel, err := CIDToShardPath(c)
	require.NoError(t, err)
	fileName := rel[3:]
	_, err = ShardPathToCID("zz", fileName)
	assert.Error(t, err)
}

func TestDifferentContentDifferentCID(t *testing.T) {
	c1, err := ComputeCIDBytes(CodecDagCBOR, []byte{0x01})
	require.NoError(t, err)
	c2, err := ComputeCIDBytes(CodecDagCBOR, []byte{0x02})
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}
