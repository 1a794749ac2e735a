// Package exporter assembles a pipeline held in the local store into the
// interplanetary area's block representation, returning the root pipeline
// CID (spec §4.9).
package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"holium/blockstore"
	"holium/datatree"
	"holium/localstore"
	"holium/pipeline"
	"holium/selector"
)

// ErrUnknownEndpoint is returned when a connection names a typed endpoint
// that has no corresponding vertex in the local store.
type ErrUnknownEndpoint struct{ TypedName string }

func (e ErrUnknownEndpoint) Error() string {
	return fmt.Sprintf("connection references unknown vertex %q", e.TypedName)
}

type vertexSlot struct {
	index   int
	content pipeline.Vertex
}

// Export walks every entity recorded in ls and writes the corresponding
// block tree to s, returning the CID of the assembled pipeline block.
//
// Vertex indices are assigned up front, in the same deterministic order the
// pipeline DAG builder uses (sources, then shapers, then transformations),
// rather than only as connections are encountered: a single isolated vertex
// with no connections must still round-trip through import.
func Export(ctx context.Context, ls *localstore.Store, s *blockstore.Store) (cid.Cid, error) {
	slots := make(map[string]*vertexSlot)
	var order []string

	addVertices := func(t localstore.NodeType, names []string) {
		for _, name := range names {
			typedName := localstore.BuildTypedName(t, name)
			slots[typedName] = &vertexSlot{index: len(order)}
			order = append(order, typedName)
		}
	}

	sourceNames, err := ls.ListSourceNames(ctx)
	if err != nil {
		return cid.Undef, fmt.Errorf("export: %w", err)
	}
	shaperNames, err := ls.ListShaperNames(ctx)
	if err != nil {
		return cid.Undef, fmt.Errorf("export: %w", err)
	}
	transformationNames, err := ls.ListTransformationNames(ctx)
	if err != nil {
		return cid.Undef, fmt.Errorf("export: %w", err)
	}
	addVertices(localstore.NodeTypeSource, sourceNames)
	addVertices(localstore.NodeTypeShaper, shaperNames)
	addVertices(localstore.NodeTypeTransformation, transformationNames)

	// Step 1: dry transformations.
	for _, name := range transformationNames {
		typedName := localstore.BuildTypedName(localstore.NodeTypeTransformation, name)
		rec, err := ls.GetTransformation(ctx, name)
		if err != nil {
			return cid.Undef, fmt.Errorf("export transformation %s: %w", name, err)
		}
		bytecodeCID, err := s.PutWasmBytecode(ctx, rec.Bytecode)
		if err != nil {
			return cid.Undef, fmt.Errorf("export transformation %s: %w", name, err)
		}
		mbeCID, err := blockstore.PutModuleBytecodeEnvelope(ctx, s, bytecodeCID)
		if err != nil {
			return cid.Undef, fmt.Errorf("export transformation %s: %w", name, err)
		}
		dtCID, err := blockstore.PutDryTransformation(ctx, s, mbeCID, rec.Handle)
		if err != nil {
			return cid.Undef, fmt.Errorf("export transformation %s: %w", name, err)
		}
		slots[typedName].content.DryTransformation = &dtCID
	}

	// Step 2: data.
	for _, typedName := range order {
		holiumCBOR, err := ls.GetData(ctx, typedName)
		if err != nil {
			if errors.Is(err, localstore.ErrNotFound) {
				continue
			}
			return cid.Undef, fmt.Errorf("export data %s: %w", typedName, err)
		}
		envCID, err := datatree.Write(ctx, s, holiumCBOR)
		if err != nil {
			return cid.Undef, fmt.Errorf("export data %s: %w", typedName, err)
		}
		slots[typedName].content.RecursiveData = &envCID
	}

	// Step 3: metadata.
	for _, name := range sourceNames {
		typedName := localstore.BuildTypedName(localstore.NodeTypeSource, name)
		rec, err := ls.GetSource(ctx, name)
		if err != nil {
			return cid.Undef, fmt.Errorf("export source %s: %w", name, err)
		}
		schema := rec.JSONSchema
		metaCID, err := blockstore.PutMetadata(ctx, s, blockstore.Metadata{Name: typedName, Schema: &schema})
		if err != nil {
			return cid.Undef, fmt.Errorf("export source %s: %w", name, err)
		}
		slots[typedName].content.Metadata = &metaCID
	}
	for _, name := range shaperNames {
		typedName := localstore.BuildTypedName(localstore.NodeTypeShaper, name)
		rec, err := ls.GetShaper(ctx, name)
		if err != nil {
			return cid.Undef, fmt.Errorf("export shaper %s: %w", name, err)
		}
		schema := rec.JSONSchema
		metaCID, err := blockstore.PutMetadata(ctx, s, blockstore.Metadata{Name: typedName, Schema: &schema})
		if err != nil {
			return cid.Undef, fmt.Errorf("export shaper %s: %w", name, err)
		}
		slots[typedName].content.Metadata = &metaCID
	}
	for _, name := range transformationNames {
		typedName := localstore.BuildTypedName(localstore.NodeTypeTransformation, name)
		rec, err := ls.GetTransformation(ctx, name)
		if err != nil {
			return cid.Undef, fmt.Errorf("export transformation %s: %w", name, err)
		}
		schemaIn, schemaOut := rec.SchemaIn, rec.SchemaOut
		metaCID, err := blockstore.PutMetadata(ctx, s, blockstore.Metadata{
			Name:      typedName,
			SchemaIn:  &schemaIn,
			SchemaOut: &schemaOut,
		})
		if err != nil {
			return cid.Undef, fmt.Errorf("export transformation %s: %w", name, err)
		}
		slots[typedName].content.Metadata = &metaCID
	}

	// Step 4: connections.
	connectionIDs, err := ls.ListConnectionIDs(ctx)
	if err != nil {
		return cid.Undef, fmt.Errorf("export: %w", err)
	}
	var edges []pipeline.Edge
	for _, id := range connectionIDs {
		tailTypedName, headTypedName, err := localstore.ParseConnectionID(id)
		if err != nil {
			return cid.Undef, fmt.Errorf("export connection %s: %w", id, err)
		}
		tailSlot, ok := slots[tailTypedName]
		if !ok {
			return cid.Undef, ErrUnknownEndpoint{TypedName: tailTypedName}
		}
		headSlot, ok := slots[headTypedName]
		if !ok {
			return cid.Undef, ErrUnknownEndpoint{TypedName: headTypedName}
		}
		rec, err := ls.GetConnection(ctx, tailTypedName, headTypedName)
		if err != nil {
			return cid.Undef, fmt.Errorf("export connection %s: %w", id, err)
		}
		tailSelCID, err := selector.PutEnvelope(ctx, s, rec.TailSelector)
		if err != nil {
			return cid.Undef, fmt.Errorf("export connection %s: %w", id, err)
		}
		headSelCID, err := selector.PutEnvelope(ctx, s, rec.HeadSelector)
		if err != nil {
			return cid.Undef, fmt.Errorf("export connection %s: %w", id, err)
		}
		connCID, err := blockstore.PutConnection(ctx, s, tailSelCID, headSelCID)
		if err != nil {
			return cid.Undef, fmt.Errorf("export connection %s: %w", id, err)
		}
		edges = append(edges, pipeline.Edge{
			TailIndex:  uint64(tailSlot.index),
			HeadIndex:  uint64(headSlot.index),
			Connection: connCID,
		})
	}

	// Step 5: pipeline.
	vertices := make([]pipeline.Vertex, len(order))
	for _, typedName := range order {
		slot := slots[typedName]
		vertices[slot.index] = slot.content
	}
	return pipeline.Put(ctx, s, pipeline.Pipeline{Vertices: vertices, Edges: edges})
}
