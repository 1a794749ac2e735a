// Package importer locates a pipeline block in the interplanetary area and
// reconstructs its vertices and connections into the local store (spec
// §4.10).
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"holium/blockstore"
	"holium/datatree"
	"holium/localstore"
	"holium/multiformats"
	"holium/pipeline"
	"holium/selector"
)

// pipelineBlockSuffix is the trailing byte sequence of any canonical
// dag-cbor pipeline block: the map's last two entries are, in key order,
// `typedVersion: "pl_0"` (since canonical dag-cbor sorts map keys by
// byte-length then lexicographically, and "content" sorts before
// "typedVersion"). This mirrors the constant the original implementation
// derives from its own cbor encoder, recomputed here for this encoder's
// output.
var pipelineBlockSuffix = []byte{
	0x6c, 't', 'y', 'p', 'e', 'd', 'V', 'e', 'r', 's', 'i', 'o', 'n',
	0x64, 'p', 'l', '_', '0',
}

// ErrPipelineBlockNotFound is returned when no block in the interplanetary
// area matches the pipeline block's terminal byte signature.
var ErrPipelineBlockNotFound = errors.New("no pipeline block found in interplanetary area")

// ErrMissingMetadata is returned when a pipeline vertex carries no metadata
// link; every vertex must name itself via a metadata block.
var ErrMissingMetadata = errors.New("pipeline vertex missing metadata link")

// ErrMissingDryTransformation is returned when a transformation vertex
// carries no dry-transformation link.
var ErrMissingDryTransformation = errors.New("transformation vertex missing dry-transformation link")

// ErrMissingSchema is returned when a vertex's metadata lacks the schema
// field(s) its node type requires.
type ErrMissingSchema struct{ TypedName string }

func (e ErrMissingSchema) Error() string {
	return fmt.Sprintf("metadata for %q is missing a required schema", e.TypedName)
}

// findPipelineBlock walks the two-level shard directory tree under the
// interplanetary area's root and returns the CID of the first file whose
// trailing bytes match pipelineBlockSuffix.
func findPipelineBlock(root string) (cid.Cid, error) {
	shardDirs, err := os.ReadDir(root)
	if err != nil {
		return cid.Undef, fmt.Errorf("read interplanetary area: %w", err)
	}
	for _, shardDir := range shardDirs {
		if !shardDir.IsDir() {
			continue
		}
		shardPath := filepath.Join(root, shardDir.Name())
		entries, err := os.ReadDir(shardPath)
		if err != nil {
			return cid.Undef, fmt.Errorf("read shard directory %s: %w", shardPath, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			match, err := hasSuffix(filepath.Join(shardPath, entry.Name()), pipelineBlockSuffix)
			if err != nil {
				return cid.Undef, err
			}
			if !match {
				continue
			}
			return multiformats.ShardPathToCID(shardDir.Name(), entry.Name())
		}
	}
	return cid.Undef, ErrPipelineBlockNotFound
}

func hasSuffix(path string, suffix []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() < int64(len(suffix)) {
		return false, nil
	}
	buf := make([]byte, len(suffix))
	if _, err := f.ReadAt(buf, info.Size()-int64(len(suffix))); err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	for i := range buf {
		if buf[i] != suffix[i] {
			return false, nil
		}
	}
	return true, nil
}

// Import locates the pipeline block under s's interplanetary area, and
// populates ls with every vertex and connection it describes.
func Import(ctx context.Context, s *blockstore.Store, ls *localstore.Store) error {
	pipelineCID, err := findPipelineBlock(s.Root())
	if err != nil {
		return err
	}
	p, err := pipeline.Get(ctx, s, pipelineCID)
	if err != nil {
		return fmt.Errorf("parse pipeline block %s: %w", pipelineCID, err)
	}

	indexToTypedName := make(map[uint64]string, len(p.Vertices))
	for idx, v := range p.Vertices {
		typedName, err := importVertex(ctx, s, ls, v)
		if err != nil {
			return fmt.Errorf("import vertex %d: %w", idx, err)
		}
		indexToTypedName[uint64(idx)] = typedName
	}

	for i, e := range p.Edges {
		if err := importEdge(ctx, s, ls, e, indexToTypedName); err != nil {
			return fmt.Errorf("import edge %d: %w", i, err)
		}
	}
	return nil
}

func importVertex(ctx context.Context, s *blockstore.Store, ls *localstore.Store, v pipeline.Vertex) (string, error) {
	if v.Metadata == nil {
		return "", ErrMissingMetadata
	}
	meta, err := blockstore.GetMetadata(ctx, s, *v.Metadata)
	if err != nil {
		return "", fmt.Errorf("read metadata: %w", err)
	}
	nodeType, name, err := localstore.ParseTypedName(meta.Name)
	if err != nil {
		return "", fmt.Errorf("parse typed name %q: %w", meta.Name, err)
	}

	switch nodeType {
	case localstore.NodeTypeSource:
		if meta.Schema == nil {
			return "", ErrMissingSchema{TypedName: meta.Name}
		}
		if err := ls.PutSource(ctx, name, localstore.SourceRecord{JSONSchema: *meta.Schema}); err != nil {
			return "", err
		}
	case localstore.NodeTypeShaper:
		if meta.Schema == nil {
			return "", ErrMissingSchema{TypedName: meta.Name}
		}
		if err := ls.PutShaper(ctx, name, localstore.ShaperRecord{JSONSchema: *meta.Schema}); err != nil {
			return "", err
		}
	case localstore.NodeTypeTransformation:
		if meta.SchemaIn == nil || meta.SchemaOut == nil {
			return "", ErrMissingSchema{TypedName: meta.Name}
		}
		if v.DryTransformation == nil {
			return "", ErrMissingDryTransformation
		}
		dt, err := blockstore.GetDryTransformation(ctx, s, *v.DryTransformation)
		if err != nil {
			return "", fmt.Errorf("read dry transformation: %w", err)
		}
		mbe, err := blockstore.GetModuleBytecodeEnvelope(ctx, s, dt.ModuleBytecodeEnvelope)
		if err != nil {
			return "", fmt.Errorf("read module bytecode envelope: %w", err)
		}
		bytecode, err := s.GetRaw(ctx, mbe.Content)
		if err != nil {
			return "", fmt.Errorf("read module bytecode: %w", err)
		}
		rec := localstore.TransformationRecord{
			Bytecode:  bytecode,
			Handle:    dt.Handle,
			SchemaIn:  *meta.SchemaIn,
			SchemaOut: *meta.SchemaOut,
		}
		if err := ls.PutTransformation(ctx, name, rec); err != nil {
			return "", err
		}
	}

	if v.RecursiveData != nil {
		holiumCBOR, err := datatree.Read(ctx, s, *v.RecursiveData)
		if err != nil {
			return "", fmt.Errorf("read data envelope: %w", err)
		}
		if err := ls.PutData(ctx, meta.Name, holiumCBOR); err != nil {
			return "", err
		}
	}

	return meta.Name, nil
}

func importEdge(ctx context.Context, s *blockstore.Store, ls *localstore.Store, e pipeline.Edge, indexToTypedName map[uint64]string) error {
	tailTypedName, ok := indexToTypedName[e.TailIndex]
	if !ok {
		return fmt.Errorf("edge references unknown tail index %d", e.TailIndex)
	}
	headTypedName, ok := indexToTypedName[e.HeadIndex]
	if !ok {
		return fmt.Errorf("edge references unknown head index %d", e.HeadIndex)
	}
	conn, err := blockstore.GetConnection(ctx, s, e.Connection)
	if err != nil {
		return fmt.Errorf("read connection block: %w", err)
	}
	tailSel, err := selector.GetEnvelope(ctx, s, conn.TailSelector)
	if err != nil {
		return fmt.Errorf("read tail selector: %w", err)
	}
	headSel, err := selector.GetEnvelope(ctx, s, conn.HeadSelector)
	if err != nil {
		return fmt.Errorf("read head selector: %w", err)
	}
	return ls.PutConnection(ctx, tailTypedName, headTypedName, localstore.ConnectionRecord{
		TailSelector: tailSel,
		HeadSelector: headSel,
	})
}
