package holiumcbor

import (
	"fmt"

	"holium/selector"
)

// cborNode is the mutable tree a structural copy ingests selected data
// into before it is flattened back to cbor bytes (spec §4.3.4). The root
// node has a nil index; every other node carries the index of its parent's
// child slot. A non-leaf node either already holds resolved bytes (once a
// Matcher has been reached) or still holds unresolved children.
type cborNode struct {
	index *uint64

	leaf     bool
	leafData []byte

	resolved []byte
	children []*cborNode
}

func newRoot() *cborNode {
	return &cborNode{children: []*cborNode{}}
}

func (n *cborNode) getIndex() *uint64 { return n.index }

func (n *cborNode) hasChild(index uint64) bool {
	for _, c := range n.children {
		if c.index != nil && *c.index == index {
			return true
		}
	}
	return false
}

func (n *cborNode) childAt(index uint64) *cborNode {
	for _, c := range n.children {
		if c.index != nil && *c.index == index {
			return c
		}
	}
	return nil
}

func (n *cborNode) pushChild(c *cborNode) error {
	if c.index != nil && n.hasChild(*c.index) {
		return ErrIndexAlreadyTaken
	}
	n.children = append(n.children, c)
	return nil
}

func leafAt(index uint64, data []byte) *cborNode {
	idx := index
	return &cborNode{index: &idx, leaf: true, leafData: data}
}

func nonLeafAt(index uint64) *cborNode {
	idx := index
	return &cborNode{index: &idx, children: []*cborNode{}}
}

// ingest guides a data set into node according to sel, building out node's
// children as needed.
func ingest(node *cborNode, sel selector.Selector, dataSet [][]byte) error {
	switch sel.Kind {
	case selector.KindExploreIndex:
		if node.leaf {
			return ErrIndexSelectionOnLeaf
		}
		switch sel.Next.Kind {
		case selector.KindMatcher:
			if node.hasChild(sel.Index) {
				return ErrIndexAlreadyTaken
			}
			if len(dataSet) == 0 {
				return ErrNoDataInDataSet
			}
			if len(dataSet) > 1 {
				group := nonLeafAt(sel.Index)
				for i, d := range dataSet {
					group.children = append(group.children, leafAt(uint64(i), d))
				}
				return node.pushChild(group)
			}
			return node.pushChild(leafAt(sel.Index, dataSet[0]))
		case selector.KindExploreIndex, selector.KindExploreRange:
			child := node.childAt(sel.Index)
			if child == nil {
				child = nonLeafAt(sel.Index)
				if err := node.pushChild(child); err != nil {
					return err
				}
			}
			return ingest(child, *sel.Next, dataSet)
		case selector.KindExploreUnion:
			return ErrUnionOnlyAtRoot
		}
	case selector.KindExploreRange:
		if node.leaf {
			return ErrRangeSelectionOnLeaf
		}
		if uint64(len(dataSet)) != sel.End-sel.Start {
			return ErrDatasetLengthUnequalRangeLength
		}
		for i, idx := 0, sel.Start; idx < sel.End; i, idx = i+1, idx+1 {
			if node.hasChild(idx) {
				return ErrIndexAlreadyTaken
			}
			if err := node.pushChild(leafAt(idx, dataSet[i])); err != nil {
				return err
			}
		}
	case selector.KindExploreUnion:
		return ErrUnionOnlyAtRootLevel
	case selector.KindMatcher:
		if len(dataSet) == 1 {
			node.resolved = dataSet[0]
			return nil
		}
		buf := GenerateArrayCBORHeader(uint64(len(dataSet)))
		for _, d := range dataSet {
			buf = append(buf, d...)
		}
		node.resolved = buf
	}
	return nil
}

// generateCBOR flattens a cborNode tree back into minimum-width cbor bytes,
// bottom-up.
func generateCBOR(node *cborNode) ([]byte, error) {
	if node.leaf {
		return node.leafData, nil
	}
	if node.resolved != nil {
		return node.resolved, nil
	}
	buf := GenerateArrayCBORHeader(uint64(len(node.children)))
	for i := uint64(0); i < uint64(len(node.children)); i++ {
		child := node.childAt(i)
		if child == nil {
			return nil, ErrNoNodeAtIndex
		}
		childBytes, err := generateCBOR(child)
		if err != nil {
			return nil, err
		}
		buf = append(buf, childBytes...)
	}
	return buf, nil
}

// Copy evaluates tailSelector over sourceData and ingests the result
// according to headSelector, producing a new holium-cbor value (spec
// §4.3.4). If headSelector is a union, tailSelector must also be a union of
// the same length; each pair's data set is ingested independently.
func Copy(sourceData []byte, tailSelector, headSelector selector.Selector) ([]byte, error) {
	return CopyMany([]ConnectionInput{{
		SourceBytes:  sourceData,
		TailSelector: tailSelector,
		HeadSelector: headSelector,
	}})
}

// ConnectionInput is one incoming connection's contribution to a vertex's
// gathered input: its source vertex's bytes and the tail/head selector pair
// describing what to copy where (spec §4.3.4, §4.11 step 1). ConnectionID is
// used only to attribute errors to a specific connection; it may be empty.
type ConnectionInput struct {
	ConnectionID string
	SourceBytes  []byte
	TailSelector selector.Selector
	HeadSelector selector.Selector
}

// CopyMany ingests every connection's data into a single target tree, in
// order, and flattens the result into one holium-cbor buffer. This is the
// general form of the rewriter used by the executor when a vertex has
// multiple incoming connections writing into disjoint parts of its input
// (spec §4.3.4).
func CopyMany(conns []ConnectionInput) ([]byte, error) {
	root := newRoot()
	for _, c := range conns {
		selected, err := SelectBytes(c.SourceBytes, c.TailSelector)
		if err != nil {
			return nil, wrapConnErr(c.ConnectionID, err)
		}

		if c.HeadSelector.Kind == selector.KindExploreUnion {
			if c.TailSelector.Kind != selector.KindExploreUnion {
				return nil, wrapConnErr(c.ConnectionID, ErrNonCompatibleSelectors)
			}
			if len(c.TailSelector.Union) != len(c.HeadSelector.Union) {
				return nil, wrapConnErr(c.ConnectionID, ErrDifferentUnionLength)
			}
			for i, dataSet := range selected {
				if err := ingest(root, c.HeadSelector.Union[i], dataSet); err != nil {
					return nil, wrapConnErr(c.ConnectionID, err)
				}
			}
		} else {
			if len(selected) == 0 {
				return nil, wrapConnErr(c.ConnectionID, ErrNoDataInDataSet)
			}
			if err := ingest(root, c.HeadSelector, selected[0]); err != nil {
				return nil, wrapConnErr(c.ConnectionID, err)
			}
		}
	}
	return generateCBOR(root)
}

func wrapConnErr(connectionID string, err error) error {
	if connectionID == "" {
		return err
	}
	return fmt.Errorf("connection %s: %w", connectionID, err)
}
