// Package holiumcbor implements the constrained CBOR dialect used for
// pipeline data values (spec §4.3): a header-only structural parser that
// builds a position-addressable descriptor tree without decoding payloads,
// a selector evaluator over that tree, and a structural rewriter that
// reassembles selected fragments into a new value.
//
// A holium-cbor value's root must be an array; maps and tags never appear
// anywhere in the tree.
package holiumcbor

import (
	"bytes"
	"fmt"
	"io"
)

// Kind discriminates the cbor major types holium-cbor allows.
type Kind int

const (
	KindUnsigned Kind = iota
	KindNegative
	KindBytes
	KindString
	KindArray
	KindSimple
)

// Node describes one cbor value within a reader: where its header sits,
// where its payload sits (if any), and — for arrays — its children. It
// carries no decoded payload; callers fetch bytes on demand via
// RetrieveCBORInReader.
type Node struct {
	Kind         Kind
	HeaderOffset uint64

	// Scalar fields (Unsigned/Negative/Bytes/String/Simple).
	HasDataOffset bool
	DataOffset    uint64
	DataSize      uint64

	// Array fields.
	NumElements uint64
	Elements    []Node
}

func (n Node) isRecursive() bool { return n.Kind == KindArray }

// Details returns the header offset and total byte length (header plus
// payload, recursively for arrays) a node occupies.
func (n Node) Details() (offset uint64, length uint64) {
	if !n.isRecursive() {
		if !n.HasDataOffset {
			return n.HeaderOffset, 1
		}
		return n.HeaderOffset, (n.DataOffset - n.HeaderOffset) + n.DataSize
	}
	if n.NumElements == 0 {
		return n.HeaderOffset, 1
	}
	size := n.DataOffset - n.HeaderOffset
	for _, el := range n.Elements {
		_, l := el.Details()
		size += l
	}
	return n.HeaderOffset, size
}

// NextOffset returns the first byte offset past this node.
func (n Node) NextOffset() uint64 {
	if n.isRecursive() {
		if n.NumElements == 0 {
			return n.HeaderOffset + 1
		}
		if len(n.Elements) == 0 {
			return n.DataOffset
		}
		return n.Elements[len(n.Elements)-1].NextOffset()
	}
	if n.HasDataOffset {
		return n.DataOffset + n.DataSize
	}
	return n.HeaderOffset + 1
}

// Parse reads the complete structural description of a holium-cbor value:
// its root header plus, recursively, every array element's header. The
// root must be an array (spec §4.3.1).
func Parse(data []byte) (Node, error) {
	r := bytes.NewReader(data)
	root, err := readHeader(r, 0)
	if err != nil {
		return Node{}, err
	}
	if root.Kind != KindArray {
		return Node{}, ErrRootNotArray
	}
	if err := fetchRecursiveElementsDetail(r, &root); err != nil {
		return Node{}, err
	}
	return root, nil
}

// readHeader reads a single cbor header at headerOffset and classifies its
// major type. It does not recurse into array elements.
func readHeader(r io.ReadSeeker, headerOffset uint64) (Node, error) {
	if _, err := r.Seek(int64(headerOffset), io.SeekStart); err != nil {
		return Node{}, fmt.Errorf("seek to header offset %d: %w", headerOffset, err)
	}
	var firstByte [1]byte
	if _, err := r.Read(firstByte[:]); err != nil {
		return Node{}, fmt.Errorf("read header byte at %d: %w", headerOffset, err)
	}

	majorType := firstByte[0] >> 5
	dataDetails := firstByte[0] & 0x1F

	hasOffset, dataOffset, dataSize, err := readDataSize(r, majorType, headerOffset, dataDetails)
	if err != nil {
		return Node{}, err
	}

	switch majorType {
	case 0:
		return Node{Kind: KindUnsigned, HeaderOffset: headerOffset, HasDataOffset: hasOffset, DataOffset: dataOffset, DataSize: dataSize}, nil
	case 1:
		return Node{Kind: KindNegative, HeaderOffset: headerOffset, HasDataOffset: hasOffset, DataOffset: dataOffset, DataSize: dataSize}, nil
	case 2:
		return Node{Kind: KindBytes, HeaderOffset: headerOffset, HasDataOffset: hasOffset, DataOffset: dataOffset, DataSize: dataSize}, nil
	case 3:
		return Node{Kind: KindString, HeaderOffset: headerOffset, HasDataOffset: hasOffset, DataOffset: dataOffset, DataSize: dataSize}, nil
	case 4:
		return Node{Kind: KindArray, HeaderOffset: headerOffset, HasDataOffset: hasOffset, DataOffset: dataOffset, NumElements: dataSize}, nil
	case 5:
		return Node{}, ErrMapsForbidden
	case 7:
		return Node{Kind: KindSimple, HeaderOffset: headerOffset, HasDataOffset: hasOffset, DataOffset: dataOffset, DataSize: dataSize}, nil
	default:
		return Node{}, ErrNonExistingMajorType
	}
}

// readDataSize returns whether a data offset exists, the data offset, and
// the data size (byte length for scalars, element count for arrays)
// encoded by a cbor header's additional-information bits.
func readDataSize(r io.ReadSeeker, majorType uint8, headerOffset uint64, dataDetails uint8) (hasOffset bool, dataOffset uint64, dataSize uint64, err error) {
	switch majorType {
	case 0, 1:
		switch {
		case dataDetails <= 23:
			return true, headerOffset, 1, nil
		case dataDetails == 24:
			return true, headerOffset + 1, 1, nil
		case dataDetails == 25:
			return true, headerOffset + 1, 2, nil
		case dataDetails == 26:
			return true, headerOffset + 1, 4, nil
		case dataDetails == 27:
			return true, headerOffset + 1, 8, nil
		default:
			return false, 0, 0, ErrUnhandledDataDetails
		}
	case 2, 3, 4, 5:
		var additionalBytes int
		switch {
		case dataDetails == 0:
			return false, 0, 0, nil
		case dataDetails <= 23:
			return true, headerOffset + 1, uint64(dataDetails), nil
		case dataDetails == 24:
			additionalBytes = 1
		case dataDetails == 25:
			additionalBytes = 2
		case dataDetails == 26:
			additionalBytes = 4
		case dataDetails == 27:
			additionalBytes = 8
		default:
			return false, 0, 0, ErrUnhandledDataDetails
		}

		complementaryOffset := headerOffset + 1
		if _, err := r.Seek(int64(complementaryOffset), io.SeekStart); err != nil {
			return false, 0, 0, fmt.Errorf("seek to length bytes at %d: %w", complementaryOffset, err)
		}
		buf := make([]byte, additionalBytes)
		if _, err := r.Read(buf); err != nil {
			return false, 0, 0, fmt.Errorf("read length bytes at %d: %w", complementaryOffset, err)
		}

		var size uint64
		for _, b := range buf {
			size = size<<8 + uint64(b)
		}

		if (additionalBytes == 1 && size < 24) || size < (uint64(1)<<(8*(additionalBytes>>1))) {
			return false, 0, 0, ErrBadCborHeader
		}

		return true, complementaryOffset + uint64(additionalBytes), size, nil
	case 7:
		return true, headerOffset, 1, nil
	default:
		return false, 0, 0, ErrNonExistingMajorType
	}
}

// fetchRecursiveElementsDetail recursively fills in node.Elements for an
// array node whose header has already been read.
func fetchRecursiveElementsDetail(r io.ReadSeeker, node *Node) error {
	if node.NumElements == 0 {
		return nil
	}

	offset := node.DataOffset
	for i := uint64(0); i < node.NumElements; i++ {
		element, err := readHeader(r, offset)
		if err != nil {
			return err
		}
		if element.Kind == KindArray {
			if err := fetchRecursiveElementsDetail(r, &element); err != nil {
				return err
			}
		}
		node.Elements = append(node.Elements, element)
		offset = node.Elements[len(node.Elements)-1].NextOffset()
	}
	return nil
}
