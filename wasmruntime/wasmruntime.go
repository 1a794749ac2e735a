// Package wasmruntime adapts a guest wasm module to the executor's calling
// convention (spec §4.11): a guest exports a `memory`, an
// `__hbindgen_mem_alloc` allocator, and one or more transformation handles
// called as `(ret_ptr, data_ptr, data_len) -> ()`, writing their output as an
// 8-byte little-endian `{ptr, len}` pair at ret_ptr. The core never grows
// this ABI with host-side imports; a richer environment belongs in a layer
// above the executor.
package wasmruntime

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const allocExportName = "__hbindgen_mem_alloc"

// ErrMissingExport is returned when a guest module lacks memory, the
// allocator export, or the requested handle.
type ErrMissingExport struct{ Name string }

func (e ErrMissingExport) Error() string {
	return fmt.Sprintf("wasm module missing required export %q", e.Name)
}

// ErrTrap wraps a trap (panic, unreachable, stack overflow, ...) raised
// during guest execution, attributed to the handle that was called.
type ErrTrap struct {
	Handle string
	Err    error
}

func (e ErrTrap) Error() string {
	return fmt.Sprintf("wasm handle %q trapped: %v", e.Handle, e.Err)
}

func (e ErrTrap) Unwrap() error { return e.Err }

// ErrOutOfMemory is returned when the guest allocator cannot satisfy an
// allocation request, or when the input cannot be written into guest memory.
// A returned slice that falls outside guest memory is reported as a plain
// error, not as ErrOutOfMemory.
type ErrOutOfMemory struct{ Requested uint32 }

func (e ErrOutOfMemory) Error() string {
	return fmt.Sprintf("wasm guest out of memory (requested %d bytes)", e.Requested)
}

// Runtime owns a wazero runtime instance and compilation cache shared across
// every module it instantiates.
type Runtime struct {
	wz wazero.Runtime
}

// New constructs a Runtime backed by a fresh wazero engine.
func New(ctx context.Context) (*Runtime, error) {
	return &Runtime{wz: wazero.NewRuntime(ctx)}, nil
}

// Close releases every module and resource owned by the runtime.
func (r *Runtime) Close(ctx context.Context) error {
	return r.wz.Close(ctx)
}

// Module is a compiled, not-yet-instantiated guest. Compilation is
// separated from instantiation so the executor can cache compiled modules
// across repeated invocations of the same transformation (spec §4.11's
// "cold or cached" instantiation note).
type Module struct {
	compiled wazero.CompiledModule
}

// Compile validates and compiles wasm bytecode. It does not instantiate the
// module or run any guest code.
func (r *Runtime) Compile(ctx context.Context, bytecode []byte) (*Module, error) {
	compiled, err := r.wz.CompileModule(ctx, bytecode)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	return &Module{compiled: compiled}, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error { return m.compiled.Close(ctx) }

// Invoke instantiates module fresh, calls handle with input according to
// the host-guest ABI (spec §4.11), and returns the guest's output bytes.
// Each call gets its own instance so that one transformation's guest state
// can never leak into another's.
func (r *Runtime) Invoke(ctx context.Context, module *Module, handle string, input []byte) ([]byte, error) {
	cfg := wazero.NewModuleConfig().WithName("")
	instance, err := r.wz.InstantiateModule(ctx, module.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate wasm module: %w", err)
	}
	defer instance.Close(ctx)

	mem := instance.Memory()
	if mem == nil {
		return nil, ErrMissingExport{Name: "memory"}
	}

	alloc := instance.ExportedFunction(allocExportName)
	if alloc == nil {
		return nil, ErrMissingExport{Name: allocExportName}
	}

	fn := instance.ExportedFunction(handle)
	if fn == nil {
		return nil, ErrMissingExport{Name: handle}
	}

	dataPtr, err := allocate(ctx, alloc, uint32(len(input)))
	if err != nil {
		return nil, err
	}
	if !mem.Write(dataPtr, input) {
		return nil, ErrOutOfMemory{Requested: uint32(len(input))}
	}

	retPtr, err := allocate(ctx, alloc, 8)
	if err != nil {
		return nil, err
	}

	if _, err := fn.Call(ctx, uint64(retPtr), uint64(dataPtr), uint64(len(input))); err != nil {
		return nil, ErrTrap{Handle: handle, Err: err}
	}

	retBytes, ok := mem.Read(retPtr, 8)
	if !ok {
		return nil, fmt.Errorf("wasm handle %q: return slice at %#x out of guest memory bounds", handle, retPtr)
	}
	outPtr := binary.LittleEndian.Uint32(retBytes[0:4])
	outLen := binary.LittleEndian.Uint32(retBytes[4:8])

	out, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("wasm handle %q: output slice [%#x,+%d) out of guest memory bounds", handle, outPtr, outLen)
	}
	// Read returns a view into guest memory; copy it out before the
	// instance is closed and the backing memory is released.
	result := make([]byte, outLen)
	copy(result, out)
	return result, nil
}

func allocate(ctx context.Context, alloc api.Function, size uint32) (uint32, error) {
	results, err := alloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, ErrTrap{Handle: allocExportName, Err: err}
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("%s returned no results", allocExportName)
	}
	ptr := uint32(results[0])
	if ptr == 0 && size > 0 {
		return 0, ErrOutOfMemory{Requested: size}
	}
	return ptr, nil
}
