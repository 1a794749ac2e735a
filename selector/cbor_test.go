package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holium/blockstore"
)

func TestToNodeFromNodeRoundTrip(t *testing.T) {
	cases := []Selector{
		Matcher(),
		MatcherLabeled("lbl"),
		ExploreIndex(3, Matcher()),
		ExploreRange(1, 5, Matcher()),
		ExploreUnion(ExploreIndex(0, Matcher()), ExploreRange(0, 2, Matcher())),
		ExploreIndex(0, ExploreIndex(1, Matcher())),
	}
	for _, s := range cases {
		node, err := ToNode(s)
		require.NoError(t, err)
		back, err := FromNode(node)
		require.NoError(t, err)
		assert.Equal(t, s, back)
	}
}

func TestPutGetEnvelope(t *testing.T) {
	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	s := ExploreIndex(0, ExploreRange(1, 3, Matcher()))
	c, err := PutEnvelope(ctx, bs, s)
	require.NoError(t, err)

	back, err := GetEnvelope(ctx, bs, c)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestPutEnvelopeDeterministicCID(t *testing.T) {
	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	s := Matcher()
	c1, err := PutEnvelope(ctx, bs, s)
	require.NoError(t, err)
	c2, err := PutEnvelope(ctx, bs, s)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}
