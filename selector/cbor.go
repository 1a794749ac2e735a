package selector

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"holium/blockstore"
)

// ToNode builds the CBOR map representation of a selector, using the same
// fixed key alphabet as the JSON encoding (spec §4.8).
func ToNode(s Selector) (datamodel.Node, error) {
	switch s.Kind {
	case KindMatcher:
		builder := basicnode.Prototype.Map.NewBuilder()
		size := int64(0)
		if s.Label != "" {
			size = 1
		}
		ma, err := builder.BeginMap(size)
		if err != nil {
			return nil, err
		}
		if s.Label != "" {
			entry, err := ma.AssembleEntry("label")
			if err != nil {
				return nil, err
			}
			if err := entry.AssignString(s.Label); err != nil {
				return nil, err
			}
		}
		if err := ma.Finish(); err != nil {
			return nil, err
		}
		return wrapSingleKey(".", builder.Build())
	case KindExploreIndex:
		nextNode, err := ToNode(*s.Next)
		if err != nil {
			return nil, err
		}
		builder := basicnode.Prototype.Map.NewBuilder()
		ma, err := builder.BeginMap(2)
		if err != nil {
			return nil, err
		}
		if err := assembleUint(ma, "i", s.Index); err != nil {
			return nil, err
		}
		if err := assembleNode(ma, ">", nextNode); err != nil {
			return nil, err
		}
		if err := ma.Finish(); err != nil {
			return nil, err
		}
		return wrapSingleKey("i", builder.Build())
	case KindExploreRange:
		nextNode, err := ToNode(*s.Next)
		if err != nil {
			return nil, err
		}
		builder := basicnode.Prototype.Map.NewBuilder()
		ma, err := builder.BeginMap(3)
		if err != nil {
			return nil, err
		}
		if err := assembleUint(ma, "^", s.Start); err != nil {
			return nil, err
		}
		if err := assembleUint(ma, "$", s.End); err != nil {
			return nil, err
		}
		if err := assembleNode(ma, ">", nextNode); err != nil {
			return nil, err
		}
		if err := ma.Finish(); err != nil {
			return nil, err
		}
		return wrapSingleKey("r", builder.Build())
	case KindExploreUnion:
		builder := basicnode.Prototype.List.NewBuilder()
		la, err := builder.BeginList(int64(len(s.Union)))
		if err != nil {
			return nil, err
		}
		for _, u := range s.Union {
			un, err := ToNode(u)
			if err != nil {
				return nil, err
			}
			if err := la.AssembleValue().AssignNode(un); err != nil {
				return nil, err
			}
		}
		if err := la.Finish(); err != nil {
			return nil, err
		}
		return wrapSingleKey("|", builder.Build())
	default:
		return nil, fmt.Errorf("unknown selector kind %d", s.Kind)
	}
}

func wrapSingleKey(key string, value datamodel.Node) (datamodel.Node, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(1)
	if err != nil {
		return nil, err
	}
	if err := assembleNode(ma, key, value); err != nil {
		return nil, err
	}
	if err := ma.Finish(); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

func assembleUint(ma datamodel.MapAssembler, key string, v uint64) error {
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignInt(int64(v))
}

func assembleNode(ma datamodel.MapAssembler, key string, value datamodel.Node) error {
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignNode(value)
}

// FromNode parses a selector out of its single-key-map CBOR representation.
func FromNode(node datamodel.Node) (Selector, error) {
	if node.Length() != 1 {
		return Selector{}, fmt.Errorf("selector map must have exactly one key, got %d", node.Length())
	}
	it := node.MapIterator()
	k, v, err := it.Next()
	if err != nil {
		return Selector{}, err
	}
	key, err := k.AsString()
	if err != nil {
		return Selector{}, err
	}
	switch key {
	case ".":
		s := Selector{Kind: KindMatcher}
		if labelNode, err := v.LookupByString("label"); err == nil {
			label, err := labelNode.AsString()
			if err != nil {
				return Selector{}, err
			}
			s.Label = label
		}
		return s, nil
	case "i":
		idxNode, err := v.LookupByString("i")
		if err != nil {
			return Selector{}, fmt.Errorf("explore-index missing i: %w", err)
		}
		idx, err := idxNode.AsInt()
		if err != nil {
			return Selector{}, err
		}
		nextNode, err := v.LookupByString(">")
		if err != nil {
			return Selector{}, fmt.Errorf("explore-index missing next: %w", err)
		}
		next, err := FromNode(nextNode)
		if err != nil {
			return Selector{}, err
		}
		return Selector{Kind: KindExploreIndex, Index: uint64(idx), Next: &next}, nil
	case "r":
		startNode, err := v.LookupByString("^")
		if err != nil {
			return Selector{}, fmt.Errorf("explore-range missing start: %w", err)
		}
		start, err := startNode.AsInt()
		if err != nil {
			return Selector{}, err
		}
		endNode, err := v.LookupByString("$")
		if err != nil {
			return Selector{}, fmt.Errorf("explore-range missing end: %w", err)
		}
		end, err := endNode.AsInt()
		if err != nil {
			return Selector{}, err
		}
		nextNode, err := v.LookupByString(">")
		if err != nil {
			return Selector{}, fmt.Errorf("explore-range missing next: %w", err)
		}
		next, err := FromNode(nextNode)
		if err != nil {
			return Selector{}, err
		}
		return Selector{Kind: KindExploreRange, Start: uint64(start), End: uint64(end), Next: &next}, nil
	case "|":
		n := v.Length()
		union := make([]Selector, 0, n)
		it := v.ListIterator()
		for !it.Done() {
			_, item, err := it.Next()
			if err != nil {
				return Selector{}, err
			}
			parsed, err := FromNode(item)
			if err != nil {
				return Selector{}, err
			}
			union = append(union, parsed)
		}
		return Selector{Kind: KindExploreUnion, Union: union}, nil
	default:
		return Selector{}, fmt.Errorf("unknown selector key %q", key)
	}
}

// PutEnvelope wraps s in the top-level `{"selector": ...}` envelope and
// writes it as a dag-cbor block.
func PutEnvelope(ctx context.Context, s *blockstore.Store, sel Selector) (cid.Cid, error) {
	selNode, err := ToNode(sel)
	if err != nil {
		return cid.Undef, fmt.Errorf("encode selector: %w", err)
	}
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(1)
	if err != nil {
		return cid.Undef, err
	}
	if err := assembleNode(ma, "selector", selNode); err != nil {
		return cid.Undef, err
	}
	if err := ma.Finish(); err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, builder.Build())
}

// GetEnvelope reads back a selector envelope block.
func GetEnvelope(ctx context.Context, s *blockstore.Store, c cid.Cid) (Selector, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return Selector{}, err
	}
	selNode, err := node.LookupByString("selector")
	if err != nil {
		return Selector{}, fmt.Errorf("selector envelope missing selector key: %w", err)
	}
	return FromNode(selNode)
}
