package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holium/dag"
	"holium/localstore"
	"holium/selector"
	"holium/wasmruntime"
)

// addOneModule is a hand-assembled wasm binary exporting memory, a
// bump-pointer __hbindgen_mem_alloc, and an add_one handle that increments
// the first input byte in place and reports it back at the same
// pointer/length, matching the (ret_ptr, data_ptr, data_len) -> () ABI.
func addOneModule() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // header

		0x01, 0x0c,
		0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00,

		0x03, 0x03,
		0x02, 0x00, 0x01,

		0x05, 0x03,
		0x01, 0x00, 0x01,

		0x06, 0x07,
		0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,

		0x07, 0x2b,
		0x03,
		0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
		0x14, 0x5f, 0x5f, 0x68, 0x62, 0x69, 0x6e, 0x64, 0x67, 0x65, 0x6e, 0x5f, 0x6d, 0x65, 0x6d, 0x5f, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x00, 0x00,
		0x07, 0x61, 0x64, 0x64, 0x5f, 0x6f, 0x6e, 0x65, 0x00, 0x01,

		0x0a, 0x31,
		0x02,
		0x11,
		0x01, 0x01, 0x7f,
		0x23, 0x00, 0x21, 0x01, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x20, 0x01, 0x0b,
		0x1d,
		0x00,
		0x20, 0x00, 0x20, 0x01, 0x36, 0x00, 0x00,
		0x20, 0x00, 0x20, 0x02, 0x36, 0x00, 0x04,
		0x20, 0x01, 0x20, 0x01, 0x2d, 0x00, 0x00, 0x41, 0x01, 0x6a, 0x3a, 0x00, 0x00,
		0x0b,
	}
}

func identitySelectors() (tail, head selector.Selector) {
	return selector.Matcher(), selector.Matcher()
}

func TestRunSourceToShaperPassthrough(t *testing.T) {
	ls, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()
	ctx := context.Background()

	require.NoError(t, ls.PutSource(ctx, "a", localstore.SourceRecord{JSONSchema: "{}"}))
	require.NoError(t, ls.PutShaper(ctx, "s", localstore.ShaperRecord{JSONSchema: "{}"}))

	tail, head := identitySelectors()
	require.NoError(t, ls.PutConnection(ctx, "source:a", "shaper:s", localstore.ConnectionRecord{
		TailSelector: tail, HeadSelector: head,
	}))

	sourceData := []byte{0x81, 0x2a} // [42]
	require.NoError(t, ls.PutData(ctx, "source:a", sourceData))

	g, err := dag.BuildFromLocalStore(ctx, ls)
	require.NoError(t, err)
	order, err := g.Validate()
	require.NoError(t, err)

	rt, err := wasmruntime.New(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)

	exported, err := Run(ctx, ls, rt, g, order, Options{})
	require.NoError(t, err)
	assert.Empty(t, exported)

	out, err := ls.GetData(ctx, "shaper:s")
	require.NoError(t, err)
	assert.Equal(t, sourceData, out)
}

func TestRunInvokesTransformation(t *testing.T) {
	ls, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()
	ctx := context.Background()

	require.NoError(t, ls.PutSource(ctx, "a", localstore.SourceRecord{JSONSchema: "{}"}))
	require.NoError(t, ls.PutTransformation(ctx, "t", localstore.TransformationRecord{
		Bytecode:  addOneModule(),
		Handle:    "add_one",
		SchemaIn:  "{}",
		SchemaOut: "{}",
	}))

	tail, head := identitySelectors()
	require.NoError(t, ls.PutConnection(ctx, "source:a", "transformation:t", localstore.ConnectionRecord{
		TailSelector: tail, HeadSelector: head,
	}))

	require.NoError(t, ls.PutData(ctx, "source:a", []byte{0x81, 0x05}))

	g, err := dag.BuildFromLocalStore(ctx, ls)
	require.NoError(t, err)
	order, err := g.Validate()
	require.NoError(t, err)

	rt, err := wasmruntime.New(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = Run(ctx, ls, rt, g, order, Options{})
	require.NoError(t, err)

	out, err := ls.GetData(ctx, "transformation:t")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x05}, out)
}

func TestRunMissingInputError(t *testing.T) {
	ls, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()
	ctx := context.Background()

	require.NoError(t, ls.PutSource(ctx, "a", localstore.SourceRecord{JSONSchema: "{}"}))

	g, err := dag.BuildFromLocalStore(ctx, ls)
	require.NoError(t, err)
	order, err := g.Validate()
	require.NoError(t, err)

	rt, err := wasmruntime.New(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, err = Run(ctx, ls, rt, g, order, Options{})
	var missing ErrMissingInput
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "source:a", missing.TypedName)
}
