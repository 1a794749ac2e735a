package holiumcbor

import (
	"bytes"
	"fmt"
	"io"

	"holium/selector"
)

// Select evaluates sel against the structural description of a node,
// returning one data set per leaf of a union (a non-union selector always
// yields exactly one data set).
func Select(node Node, sel selector.Selector) ([][]Node, error) {
	switch sel.Kind {
	case selector.KindMatcher:
		return [][]Node{{node}}, nil
	case selector.KindExploreIndex:
		if !node.isRecursive() {
			return nil, ErrNonRecursive
		}
		child, err := childAt(node, sel.Index)
		if err != nil {
			return nil, err
		}
		return Select(child, *sel.Next)
	case selector.KindExploreRange:
		if !sel.Next.IsMatcher() {
			return nil, ErrNonValidSelectorStructure
		}
		if !node.isRecursive() {
			return nil, ErrNonRecursive
		}
		selected := make([]Node, 0, sel.End-sel.Start)
		for i := sel.Start; i < sel.End; i++ {
			child, err := childAt(node, i)
			if err != nil {
				return nil, err
			}
			selected = append(selected, child)
		}
		return [][]Node{selected}, nil
	case selector.KindExploreUnion:
		var results [][]Node
		for _, sub := range sel.Union {
			sets, err := Select(node, sub)
			if err != nil {
				return nil, err
			}
			results = append(results, sets...)
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unknown selector kind %d", sel.Kind)
	}
}

func childAt(node Node, index uint64) (Node, error) {
	if node.NumElements == 0 || index >= node.NumElements {
		return Node{}, ErrNoNodeFound
	}
	return node.Elements[index], nil
}

// SelectStructure parses data and evaluates sel over it in one step.
func SelectStructure(data []byte, sel selector.Selector) ([][]Node, error) {
	root, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Select(root, sel)
}

// RetrieveCBORInReader reads back the raw bytes (header and payload) every
// node in toRetrieve spans, preserving the data-set shape.
func RetrieveCBORInReader(r io.ReadSeeker, toRetrieve [][]Node) ([][][]byte, error) {
	retrieved := make([][][]byte, 0, len(toRetrieve))
	for _, set := range toRetrieve {
		dataSet := make([][]byte, 0, len(set))
		for _, node := range set {
			offset, size := node.Details()
			if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
				return nil, fmt.Errorf("seek to node at %d: %w", offset, err)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read node at %d (%d bytes): %w", offset, size, err)
			}
			dataSet = append(dataSet, buf)
		}
		retrieved = append(retrieved, dataSet)
	}
	return retrieved, nil
}

// SelectBytes parses data, evaluates sel, and returns the raw cbor bytes of
// every selected node, grouped by data set.
func SelectBytes(data []byte, sel selector.Selector) ([][][]byte, error) {
	sets, err := SelectStructure(data, sel)
	if err != nil {
		return nil, err
	}
	return RetrieveCBORInReader(bytes.NewReader(data), sets)
}

// GenerateArrayCBORHeader emits the minimum-width cbor header for an array
// major type carrying size elements.
func GenerateArrayCBORHeader(size uint64) []byte {
	var firstByte byte
	var shift int
	switch {
	case size <= 23:
		firstByte, shift = byte(size), 0
	case size <= 0xFF:
		firstByte, shift = 24, 1
	case size <= 0xFFFF:
		firstByte, shift = 25, 2
	case size <= 0xFFFF_FFFF:
		firstByte, shift = 26, 4
	default:
		firstByte, shift = 27, 8
	}
	firstByte |= 0x80

	buf := make([]byte, 0, 1+shift)
	buf = append(buf, firstByte)
	for i := shift - 1; i >= 0; i-- {
		buf = append(buf, byte(size>>(uint(i)*8)))
	}
	return buf
}
