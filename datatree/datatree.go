// Package datatree implements the data-tree codec (spec §4.5): recursive
// conversion between an in-memory HoliumCBOR byte buffer and the
// scalar-data/recursive-data envelope tree persisted in the block store.
package datatree

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"holium/blockstore"
	"holium/holiumcbor"
	"holium/multiformats"
)

// Write recursively splits a HoliumCBOR value into scalar-data and
// recursive-data blocks and writes the whole tree to the block store,
// returning the top-level envelope CID (spec §4.5, §8's data-tree round-trip
// property).
func Write(ctx context.Context, s *blockstore.Store, holiumCBOR []byte) (cid.Cid, error) {
	root, err := holiumcbor.Parse(holiumCBOR)
	if err != nil {
		return cid.Undef, fmt.Errorf("parse holium cbor: %w", err)
	}
	return writeNode(ctx, s, holiumCBOR, root)
}

func writeNode(ctx context.Context, s *blockstore.Store, source []byte, node holiumcbor.Node) (cid.Cid, error) {
	if node.Kind == holiumcbor.KindArray {
		childCIDs := make([]cid.Cid, 0, len(node.Elements))
		for _, el := range node.Elements {
			c, err := writeNode(ctx, s, source, el)
			if err != nil {
				return cid.Undef, err
			}
			childCIDs = append(childCIDs, c)
		}
		recCID, err := blockstore.PutRecursiveData(ctx, s, childCIDs)
		if err != nil {
			return cid.Undef, fmt.Errorf("write recursive-data block: %w", err)
		}
		envCID, err := blockstore.PutRecursiveDataEnvelope(ctx, s, recCID)
		if err != nil {
			return cid.Undef, fmt.Errorf("write recursive-data envelope: %w", err)
		}
		return envCID, nil
	}

	offset, length := node.Details()
	scalarBytes := source[offset : offset+length]
	scalarCID, err := s.PutRaw(ctx, multiformats.CodecDagCBOR, scalarBytes)
	if err != nil {
		return cid.Undef, fmt.Errorf("write scalar-data block: %w", err)
	}
	envCID, err := blockstore.PutScalarDataEnvelope(ctx, s, scalarCID)
	if err != nil {
		return cid.Undef, fmt.Errorf("write scalar-data envelope: %w", err)
	}
	return envCID, nil
}

// Read recursively reconstitutes a HoliumCBOR value from the envelope tree
// rooted at c.
func Read(ctx context.Context, s *blockstore.Store, c cid.Cid) ([]byte, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return nil, err
	}
	disc, err := blockstore.PeekDiscriminant(node)
	if err != nil {
		return nil, fmt.Errorf("read data tree %s: %w", c, err)
	}
	switch disc {
	case blockstore.TypedVersionScalarDataEnvelope:
		env, err := blockstore.GetScalarDataEnvelope(ctx, s, c)
		if err != nil {
			return nil, err
		}
		return s.GetRaw(ctx, env.Content)
	case blockstore.TypedVersionRecursiveDataEnvelope:
		env, err := blockstore.GetRecursiveDataEnvelope(ctx, s, c)
		if err != nil {
			return nil, err
		}
		rec, err := blockstore.GetRecursiveData(ctx, s, env.Content)
		if err != nil {
			return nil, err
		}
		children := make([][]byte, len(rec.Elements))
		for i, childCID := range rec.Elements {
			childBytes, err := Read(ctx, s, childCID)
			if err != nil {
				return nil, err
			}
			children[i] = childBytes
		}
		buf := holiumcbor.GenerateArrayCBORHeader(uint64(len(children)))
		for _, c := range children {
			buf = append(buf, c...)
		}
		return buf, nil
	default:
		return nil, blockstore.ErrUnknownDiscriminant{Got: disc}
	}
}
