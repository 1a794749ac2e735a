// Package executor runs a valid pipeline in topological order: gathering
// each vertex's input via the selector-driven rewriter, invoking wasm for
// transformations, and persisting outputs back to the local store (spec
// §4.11).
package executor

import (
	"context"
	"fmt"

	"holium/dag"
	"holium/holiumcbor"
	"holium/localstore"
	"holium/portation"
	"holium/wasmruntime"
)

// ErrMissingInput is returned when a source vertex with no incoming
// connection has neither persisted data nor a configured import portation.
type ErrMissingInput struct{ TypedName string }

func (e ErrMissingInput) Error() string {
	return fmt.Sprintf("vertex %q has no input: no persisted data, no incoming connection, no import portation", e.TypedName)
}

// ErrUnsupportedNodeType is returned for a node type the executor does not
// know how to invoke.
type ErrUnsupportedNodeType struct{ TypedName string }

func (e ErrUnsupportedNodeType) Error() string {
	return fmt.Sprintf("vertex %q has an unsupported node type", e.TypedName)
}

// Options configures the executor's optional external bridges, one entry
// per vertex typed name.
type Options struct {
	ImportBindings map[string]portation.ImportBinding
	ExportBindings map[string]portation.ExportBinding
}

// ExportedFile names one vertex whose export portation rendered a file,
// and the external path it wrote to.
type ExportedFile struct {
	TypedName string
	Path      string
}

// Run executes every vertex in g in the given topological order, reading
// and writing through ls, invoking transformations via rt, and returns the
// list of vertices whose export portation wrote a file.
func Run(ctx context.Context, ls *localstore.Store, rt *wasmruntime.Runtime, g *dag.Graph, order []int, opts Options) ([]ExportedFile, error) {
	modules := make(map[string]*wasmruntime.Module)
	defer func() {
		for _, m := range modules {
			m.Close(ctx)
		}
	}()

	var exported []ExportedFile

	for _, idx := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		typedName := g.TypedName(idx)
		nodeType, name, err := localstore.ParseTypedName(typedName)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", typedName, err)
		}

		input, err := gatherInput(ctx, ls, g, idx, typedName, opts)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", typedName, err)
		}

		output, err := invoke(ctx, ls, rt, modules, nodeType, name, typedName, input)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", typedName, err)
		}

		if err := ls.PutData(ctx, typedName, output); err != nil {
			return nil, fmt.Errorf("run %s: persist output: %w", typedName, err)
		}

		if binding, ok := opts.ExportBindings[typedName]; ok {
			if err := binding.Portation.Export(ctx, binding.Writer, output); err != nil {
				return nil, fmt.Errorf("run %s: export portation: %w", typedName, err)
			}
			exported = append(exported, ExportedFile{TypedName: typedName, Path: binding.Path})
		}
	}

	return exported, nil
}

func gatherInput(ctx context.Context, ls *localstore.Store, g *dag.Graph, idx int, typedName string, opts Options) ([]byte, error) {
	incoming := g.IncomingEdges(idx)
	if len(incoming) == 0 {
		if has, err := ls.HasData(ctx, typedName); err != nil {
			return nil, err
		} else if has {
			return ls.GetData(ctx, typedName)
		}
		if binding, ok := opts.ImportBindings[typedName]; ok {
			return binding.Portation.Import(ctx, binding.Reader)
		}
		return nil, ErrMissingInput{TypedName: typedName}
	}

	conns := make([]holiumcbor.ConnectionInput, 0, len(incoming))
	for _, e := range incoming {
		tailTypedName := g.TypedName(e.Tail)
		// By construction the executor runs vertices in topological order,
		// so every upstream vertex has already persisted its output.
		upstream, err := ls.GetData(ctx, tailTypedName)
		if err != nil {
			return nil, fmt.Errorf("gather from %s: %w", tailTypedName, err)
		}
		tailTN, headTN, err := localstore.ParseConnectionID(e.ConnectionID)
		if err != nil {
			return nil, err
		}
		connRec, err := ls.GetConnection(ctx, tailTN, headTN)
		if err != nil {
			return nil, fmt.Errorf("load connection %s: %w", e.ConnectionID, err)
		}
		conns = append(conns, holiumcbor.ConnectionInput{
			ConnectionID: e.ConnectionID,
			SourceBytes:  upstream,
			TailSelector: connRec.TailSelector,
			HeadSelector: connRec.HeadSelector,
		})
	}
	return holiumcbor.CopyMany(conns)
}

func invoke(ctx context.Context, ls *localstore.Store, rt *wasmruntime.Runtime, modules map[string]*wasmruntime.Module, nodeType localstore.NodeType, name, typedName string, input []byte) ([]byte, error) {
	switch nodeType {
	case localstore.NodeTypeSource, localstore.NodeTypeShaper:
		return input, nil
	case localstore.NodeTypeTransformation:
		rec, err := ls.GetTransformation(ctx, name)
		if err != nil {
			return nil, err
		}
		module, ok := modules[name]
		if !ok {
			module, err = rt.Compile(ctx, rec.Bytecode)
			if err != nil {
				return nil, fmt.Errorf("compile transformation %s: %w", name, err)
			}
			modules[name] = module
		}
		return rt.Invoke(ctx, module, rec.Handle, input)
	default:
		return nil, ErrUnsupportedNodeType{TypedName: typedName}
	}
}
