package exporter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holium/blockstore"
	"holium/importer"
	"holium/localstore"
	"holium/selector"
)

// buildSampleLocalStore populates a local area with one source, one shaper,
// one transformation, and connections a->t->s, plus persisted data for the
// source. This is the fixture for spec §8 scenario 6: import(export(P)) must
// reproduce P up to entry ordering.
func buildSampleLocalStore(t *testing.T, ls *localstore.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, ls.PutSource(ctx, "a", localstore.SourceRecord{JSONSchema: `{"type":"object"}`}))
	require.NoError(t, ls.PutShaper(ctx, "s", localstore.ShaperRecord{JSONSchema: `{"type":"object"}`}))
	require.NoError(t, ls.PutTransformation(ctx, "t", localstore.TransformationRecord{
		Bytecode:  []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		Handle:    "add_one",
		SchemaIn:  `{"type":"number"}`,
		SchemaOut: `{"type":"number"}`,
	}))

	identity := localstore.ConnectionRecord{
		TailSelector: selector.ExploreRange(0, 1, selector.Matcher()),
		HeadSelector: selector.Matcher(),
	}
	require.NoError(t, ls.PutConnection(ctx, "source:a", "transformation:t", identity))
	require.NoError(t, ls.PutConnection(ctx, "transformation:t", "shaper:s", identity))

	require.NoError(t, ls.PutData(ctx, "source:a", []byte{0x81, 0x05}))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	ls, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()
	buildSampleLocalStore(t, ls)

	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)

	_, err = Export(ctx, ls, bs)
	require.NoError(t, err)

	ls2, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls2.Close()

	require.NoError(t, importer.Import(ctx, bs, ls2))

	srcNames, err := ls2.ListSourceNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, srcNames)

	shaperNames, err := ls2.ListShaperNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s"}, shaperNames)

	transformationNames, err := ls2.ListTransformationNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t"}, transformationNames)

	src, err := ls2.GetSource(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"object"}`, src.JSONSchema)

	transformation, err := ls2.GetTransformation(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "add_one", transformation.Handle)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, transformation.Bytecode)

	data, err := ls2.GetData(ctx, "source:a")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x05}, data)

	ids, err := ls2.ListConnectionIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		localstore.BuildConnectionID("source:a", "transformation:t"),
		localstore.BuildConnectionID("transformation:t", "shaper:s"),
	}, ids)

	conn, err := ls2.GetConnection(ctx, "source:a", "transformation:t")
	require.NoError(t, err)
	assert.Equal(t, selector.ExploreRange(0, 1, selector.Matcher()), conn.TailSelector)
	assert.Equal(t, selector.Matcher(), conn.HeadSelector)
}

func TestExportUnknownConnectionEndpoint(t *testing.T) {
	ctx := context.Background()
	ls, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()

	require.NoError(t, ls.PutSource(ctx, "a", localstore.SourceRecord{JSONSchema: "{}"}))
	require.NoError(t, ls.PutConnection(ctx, "source:a", "shaper:missing", localstore.ConnectionRecord{
		TailSelector: selector.Matcher(), HeadSelector: selector.Matcher(),
	}))

	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)

	_, err = Export(ctx, ls, bs)
	var unk ErrUnknownEndpoint
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, "shaper:missing", unk.TypedName)
}

func TestImportNoPipelineBlock(t *testing.T) {
	ctx := context.Background()
	bs, err := blockstore.Open(t.TempDir())
	require.NoError(t, err)

	ls, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()

	err = importer.Import(ctx, bs, ls)
	assert.ErrorIs(t, err, importer.ErrPipelineBlockNotFound)
}
