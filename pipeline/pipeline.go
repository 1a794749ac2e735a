// Package pipeline implements the three block kinds that together describe
// a persisted transformation pipeline (spec §4.2): the pipeline vertex (a
// map of optional dry-transformation/recursive-data/metadata links), the
// pipeline edge (a tail/head index pair plus a connection link), and the
// pipeline itself (an ordered vertex array and an edge array).
package pipeline

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"holium/blockstore"
)

// TypedVersionPipeline is the discriminant for a persisted pipeline block.
const TypedVersionPipeline = blockstore.TypedVersionPipeline

// Vertex is one vertex-content record: any of its dry-transformation,
// recursive-data, and metadata links it carries. Sources and shapers never
// carry a dry-transformation link; a vertex with no persisted data entry
// never carries a recursive-data link.
type Vertex struct {
	DryTransformation *cid.Cid
	RecursiveData     *cid.Cid
	Metadata          *cid.Cid
}

// Edge links a tail vertex index to a head vertex index via a connection
// block.
type Edge struct {
	TailIndex  uint64
	HeadIndex  uint64
	Connection cid.Cid
}

// Pipeline is the root persisted artifact: an ordered vertex list and an
// edge list.
type Pipeline struct {
	Vertices []Vertex
	Edges    []Edge
}

func optionalLinkEntry(ma datamodel.MapAssembler, key string, c *cid.Cid) error {
	if c == nil {
		return nil
	}
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignLink(blockstore.LinkTo(*c))
}

func vertexFieldCount(v Vertex) int64 {
	n := int64(0)
	if v.DryTransformation != nil {
		n++
	}
	if v.RecursiveData != nil {
		n++
	}
	if v.Metadata != nil {
		n++
	}
	return n
}

func vertexToNode(v Vertex) (datamodel.Node, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(vertexFieldCount(v))
	if err != nil {
		return nil, err
	}
	if err := optionalLinkEntry(ma, "dt", v.DryTransformation); err != nil {
		return nil, err
	}
	if err := optionalLinkEntry(ma, "rde", v.RecursiveData); err != nil {
		return nil, err
	}
	if err := optionalLinkEntry(ma, "meta", v.Metadata); err != nil {
		return nil, err
	}
	if err := ma.Finish(); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

func vertexFromNode(node datamodel.Node) (Vertex, error) {
	var v Vertex
	if n, err := node.LookupByString("dt"); err == nil {
		c, err := blockstore.CIDFromLinkNode(n)
		if err != nil {
			return Vertex{}, err
		}
		v.DryTransformation = &c
	}
	if n, err := node.LookupByString("rde"); err == nil {
		c, err := blockstore.CIDFromLinkNode(n)
		if err != nil {
			return Vertex{}, err
		}
		v.RecursiveData = &c
	}
	if n, err := node.LookupByString("meta"); err == nil {
		c, err := blockstore.CIDFromLinkNode(n)
		if err != nil {
			return Vertex{}, err
		}
		v.Metadata = &c
	}
	return v, nil
}

func edgeToNode(e Edge) (datamodel.Node, error) {
	builder := basicnode.Prototype.List.NewBuilder()
	la, err := builder.BeginList(3)
	if err != nil {
		return nil, err
	}
	if err := la.AssembleValue().AssignInt(int64(e.TailIndex)); err != nil {
		return nil, err
	}
	if err := la.AssembleValue().AssignInt(int64(e.HeadIndex)); err != nil {
		return nil, err
	}
	if err := la.AssembleValue().AssignLink(blockstore.LinkTo(e.Connection)); err != nil {
		return nil, err
	}
	if err := la.Finish(); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

func edgeFromNode(node datamodel.Node) (Edge, error) {
	tailNode, err := node.LookupByIndex(0)
	if err != nil {
		return Edge{}, fmt.Errorf("pipeline edge missing tail index: %w", err)
	}
	tail, err := tailNode.AsInt()
	if err != nil {
		return Edge{}, err
	}
	headNode, err := node.LookupByIndex(1)
	if err != nil {
		return Edge{}, fmt.Errorf("pipeline edge missing head index: %w", err)
	}
	head, err := headNode.AsInt()
	if err != nil {
		return Edge{}, err
	}
	connNode, err := node.LookupByIndex(2)
	if err != nil {
		return Edge{}, fmt.Errorf("pipeline edge missing connection link: %w", err)
	}
	connCID, err := blockstore.CIDFromLinkNode(connNode)
	if err != nil {
		return Edge{}, err
	}
	return Edge{TailIndex: uint64(tail), HeadIndex: uint64(head), Connection: connCID}, nil
}

// Put serializes and writes the pipeline as a dag-cbor block, returning its
// CID — the pipeline's root identifier (spec §4.9).
func Put(ctx context.Context, s *blockstore.Store, p Pipeline) (cid.Cid, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(2)
	if err != nil {
		return cid.Undef, err
	}
	if err := assembleString(ma, "typedVersion", TypedVersionPipeline); err != nil {
		return cid.Undef, err
	}
	entry, err := ma.AssembleEntry("content")
	if err != nil {
		return cid.Undef, err
	}
	ca, err := entry.BeginList(2)
	if err != nil {
		return cid.Undef, err
	}

	verticesEntry := ca.AssembleValue()
	va, err := verticesEntry.BeginList(int64(len(p.Vertices)))
	if err != nil {
		return cid.Undef, err
	}
	for _, v := range p.Vertices {
		vNode, err := vertexToNode(v)
		if err != nil {
			return cid.Undef, err
		}
		if err := va.AssembleValue().AssignNode(vNode); err != nil {
			return cid.Undef, err
		}
	}
	if err := va.Finish(); err != nil {
		return cid.Undef, err
	}

	edgesEntry := ca.AssembleValue()
	ea, err := edgesEntry.BeginList(int64(len(p.Edges)))
	if err != nil {
		return cid.Undef, err
	}
	for _, e := range p.Edges {
		eNode, err := edgeToNode(e)
		if err != nil {
			return cid.Undef, err
		}
		if err := ea.AssembleValue().AssignNode(eNode); err != nil {
			return cid.Undef, err
		}
	}
	if err := ea.Finish(); err != nil {
		return cid.Undef, err
	}

	if err := ca.Finish(); err != nil {
		return cid.Undef, err
	}
	if err := ma.Finish(); err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, builder.Build())
}

// Get reads and parses a pipeline block.
func Get(ctx context.Context, s *blockstore.Store, c cid.Cid) (Pipeline, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return Pipeline{}, err
	}
	return FromNode(node)
}

// FromNode parses an already-decoded pipeline node, for callers (the
// importer) that located the block by scanning raw bytes.
func FromNode(node datamodel.Node) (Pipeline, error) {
	tv, err := node.LookupByString("typedVersion")
	if err != nil {
		return Pipeline{}, fmt.Errorf("pipeline missing typedVersion: %w", err)
	}
	disc, err := tv.AsString()
	if err != nil {
		return Pipeline{}, err
	}
	if disc != TypedVersionPipeline {
		return Pipeline{}, blockstore.ErrUnknownDiscriminant{Got: disc}
	}
	content, err := node.LookupByString("content")
	if err != nil {
		return Pipeline{}, fmt.Errorf("pipeline missing content: %w", err)
	}
	verticesNode, err := content.LookupByIndex(0)
	if err != nil {
		return Pipeline{}, fmt.Errorf("pipeline missing vertices: %w", err)
	}
	edgesNode, err := content.LookupByIndex(1)
	if err != nil {
		return Pipeline{}, fmt.Errorf("pipeline missing edges: %w", err)
	}

	var p Pipeline
	it := verticesNode.ListIterator()
	for !it.Done() {
		_, vNode, err := it.Next()
		if err != nil {
			return Pipeline{}, err
		}
		v, err := vertexFromNode(vNode)
		if err != nil {
			return Pipeline{}, err
		}
		p.Vertices = append(p.Vertices, v)
	}

	eit := edgesNode.ListIterator()
	for !eit.Done() {
		_, eNode, err := eit.Next()
		if err != nil {
			return Pipeline{}, err
		}
		e, err := edgeFromNode(eNode)
		if err != nil {
			return Pipeline{}, err
		}
		p.Edges = append(p.Edges, e)
	}

	return p, nil
}

func assembleString(ma datamodel.MapAssembler, key, value string) error {
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignString(value)
}
