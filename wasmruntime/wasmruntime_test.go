package wasmruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyModule is the smallest valid wasm binary: magic and version, no
// sections. It exports nothing.
func emptyModule() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

// memoryOnlyModule exports a single memory and nothing else.
func memoryOnlyModule() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // header
		0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page
		0x07, 0x0a, 0x01, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // export "memory"
	}
}

// addOneModule is a hand-assembled wasm binary exporting memory, a
// bump-pointer __hbindgen_mem_alloc, and an add_one handle that increments
// the first input byte in place and reports it back at the same
// pointer/length, matching the (ret_ptr, data_ptr, data_len) -> () ABI.
func addOneModule() []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // header

		// type section: (i32)->(i32), (i32,i32,i32)->()
		0x01, 0x0c,
		0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00,

		// function section: func0 uses type0, func1 uses type1
		0x03, 0x03,
		0x02, 0x00, 0x01,

		// memory section: 1 memory, min 1 page
		0x05, 0x03,
		0x01, 0x00, 0x01,

		// global section: mutable i32 heap pointer, initialized to 1024
		0x06, 0x07,
		0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,

		// export section: memory, __hbindgen_mem_alloc, add_one
		0x07, 0x2b,
		0x03,
		0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
		0x14, 0x5f, 0x5f, 0x68, 0x62, 0x69, 0x6e, 0x64, 0x67, 0x65, 0x6e, 0x5f, 0x6d, 0x65, 0x6d, 0x5f, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x00, 0x00,
		0x07, 0x61, 0x64, 0x64, 0x5f, 0x6f, 0x6e, 0x65, 0x00, 0x01,

		// code section: alloc body, add_one body
		0x0a, 0x31,
		0x02,
		// alloc: bump heap global by $size, return old value
		0x11,
		0x01, 0x01, 0x7f,
		0x23, 0x00, 0x21, 0x01, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x20, 0x01, 0x0b,
		// add_one: *ret_ptr = {data_ptr, data_len}; data_ptr[0]++
		0x1d,
		0x00,
		0x20, 0x00, 0x20, 0x01, 0x36, 0x00, 0x00,
		0x20, 0x00, 0x20, 0x02, 0x36, 0x00, 0x04,
		0x20, 0x01, 0x20, 0x01, 0x2d, 0x00, 0x00, 0x41, 0x01, 0x6a, 0x3a, 0x00, 0x00,
		0x0b,
	}
}

func TestInvokeAddOne(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx)
	require.NoError(t, err)
	defer r.Close(ctx)

	mod, err := r.Compile(ctx, addOneModule())
	require.NoError(t, err)
	defer mod.Close(ctx)

	out, err := r.Invoke(ctx, mod, "add_one", []byte{0x05})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06}, out)
}

func TestInvokeFreshInstancePerCall(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx)
	require.NoError(t, err)
	defer r.Close(ctx)

	mod, err := r.Compile(ctx, addOneModule())
	require.NoError(t, err)
	defer mod.Close(ctx)

	out1, err := r.Invoke(ctx, mod, "add_one", []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, out1)

	out2, err := r.Invoke(ctx, mod, "add_one", []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, out2)
}

func TestInvokeMissingMemory(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx)
	require.NoError(t, err)
	defer r.Close(ctx)

	mod, err := r.Compile(ctx, emptyModule())
	require.NoError(t, err)
	defer mod.Close(ctx)

	_, err = r.Invoke(ctx, mod, "add_one", []byte{0x01})
	var missing ErrMissingExport
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "memory", missing.Name)
}

func TestInvokeMissingAllocator(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx)
	require.NoError(t, err)
	defer r.Close(ctx)

	mod, err := r.Compile(ctx, memoryOnlyModule())
	require.NoError(t, err)
	defer mod.Close(ctx)

	_, err = r.Invoke(ctx, mod, "add_one", []byte{0x01})
	var missing ErrMissingExport
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, allocExportName, missing.Name)
}

func TestInvokeMissingHandle(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx)
	require.NoError(t, err)
	defer r.Close(ctx)

	mod, err := r.Compile(ctx, addOneModule())
	require.NoError(t, err)
	defer mod.Close(ctx)

	_, err = r.Invoke(ctx, mod, "subtract_one", []byte{0x01})
	var missing ErrMissingExport
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "subtract_one", missing.Name)
}

func TestCompileRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx)
	require.NoError(t, err)
	defer r.Close(ctx)

	_, err = r.Compile(ctx, []byte("not a wasm module"))
	assert.Error(t, err)
}
