// Package blockstore implements the interplanetary area: an immutable,
// content-addressed, flat sharded-directory block store (spec §4.2, §6).
//
// Unlike the teacher's badger/blockservice-backed store, the interplanetary
// area is a plain filesystem tree: blocks are written exactly once
// (create-exclusive) under a two-character shard directory derived from their
// CID (multiformats.CIDToShardPath), and read back by re-deriving that same
// path. A small LRU cache of raw block bytes avoids re-reading hot blocks
// from disk, mirroring the teacher's blockstore.go cache-of-1000 idea;
// decoded nodes are not cached, so GetNode decodes on every call.
package blockstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"holium/multiformats"
)

// ErrBlockNotFound is returned when a CID has no corresponding block on disk.
var ErrBlockNotFound = errors.New("block not found")

// errBlockExists is returned internally when a write-once create collides;
// callers never see it since re-writing identical content is treated as a
// success (block writes are idempotent, spec §4.2).
var errBlockExists = errors.New("block already exists")

const interplanetaryDirName = "interplanetary"

// Store is the interplanetary area rooted at a holium directory.
type Store struct {
	root  string // <root>/<holium-dir>/interplanetary
	cache *lru.Cache[cid.Cid, []byte]
}

// Open creates (if absent) and returns the interplanetary area rooted at
// holiumDir/interplanetary.
func Open(holiumDir string) (*Store, error) {
	root := filepath.Join(holiumDir, interplanetaryDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create interplanetary area: %w", err)
	}
	cache, err := lru.New[cid.Cid, []byte](1000)
	if err != nil {
		return nil, fmt.Errorf("create block cache: %w", err)
	}
	return &Store{root: root, cache: cache}, nil
}

func (s *Store) pathFor(c cid.Cid) (string, error) {
	rel, err := multiformats.CIDToShardPath(c)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// PutRaw computes the CID of content under codec and writes it to its shard
// path, creating the shard directory if absent. Writing is write-once: if the
// path already exists, the write is a no-op (blocks are immutable and
// idempotent to write).
func (s *Store) PutRaw(ctx context.Context, codec uint64, content []byte) (cid.Cid, error) {
	c, err := multiformats.ComputeCIDBytes(codec, content)
	if err != nil {
		return cid.Undef, err
	}
	path, err := s.pathFor(c)
	if err != nil {
		return cid.Undef, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, fmt.Errorf("create shard dir: %w", err)
	}
	if err := writeExclusive(path, content); err != nil && !errors.Is(err, errBlockExists) {
		return cid.Undef, fmt.Errorf("write block %s: %w", c, err)
	}
	s.cache.Add(c, content)
	return c, nil
}

func writeExclusive(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return errBlockExists
		}
		return err
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// GetRaw reads the full byte content of the block addressed by c.
func (s *Store) GetRaw(ctx context.Context, c cid.Cid) ([]byte, error) {
	if v, ok := s.cache.Get(c); ok {
		return v, nil
	}
	path, err := s.pathFor(c)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read block %s: %w", c, ErrBlockNotFound)
		}
		return nil, fmt.Errorf("read block %s: %w", c, err)
	}
	s.cache.Add(c, data)
	return data, nil
}

// Has reports whether a block exists without reading its full content.
func (s *Store) Has(c cid.Cid) (bool, error) {
	path, err := s.pathFor(c)
	if err != nil {
		return false, err
	}
	if _, ok := s.cache.Get(c); ok {
		return true, nil
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Root returns the interplanetary area's root directory, for callers (the
// importer) that need to walk the shard tree directly.
func (s *Store) Root() string { return s.root }

// PutNode serializes an ipld-prime node as canonical dag-cbor and stores it.
func (s *Store) PutNode(ctx context.Context, node datamodel.Node) (cid.Cid, error) {
	var buf bytes.Buffer
	if err := dagcbor.Encode(node, &buf); err != nil {
		return cid.Undef, fmt.Errorf("encode dag-cbor node: %w", err)
	}
	return s.PutRaw(ctx, multiformats.CodecDagCBOR, buf.Bytes())
}

// GetNode reads and decodes a dag-cbor block into an ipld-prime node.
func (s *Store) GetNode(ctx context.Context, c cid.Cid) (datamodel.Node, error) {
	data, err := s.GetRaw(ctx, c)
	if err != nil {
		return nil, err
	}
	builder := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(builder, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode dag-cbor node %s: %w", c, err)
	}
	return builder.Build(), nil
}

// PutWasmBytecode validates the wasm magic number and stores the bytecode as
// a raw block.
func (s *Store) PutWasmBytecode(ctx context.Context, bytecode []byte) (cid.Cid, error) {
	if !isWasmBytecode(bytecode) {
		return cid.Undef, fmt.Errorf("put wasm bytecode: %w", ErrBadWasmMagic)
	}
	return s.PutRaw(ctx, multiformats.CodecWasmBytecode, bytecode)
}

// ErrBadWasmMagic is returned when bytecode does not start with the wasm
// magic number (spec §6).
var ErrBadWasmMagic = errors.New("bytecode does not start with wasm magic number")

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

func isWasmBytecode(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], wasmMagic)
}

// LinkTo builds an ipld-prime link value for a CID, for use in map builders.
func LinkTo(c cid.Cid) datamodel.Link { return cidlink.Link{Cid: c} }

// CIDFromLinkNode extracts the CID from a node previously assigned via
// LinkTo/AssignLink.
func CIDFromLinkNode(node datamodel.Node) (cid.Cid, error) {
	link, err := node.AsLink()
	if err != nil {
		return cid.Undef, fmt.Errorf("node is not a link: %w", err)
	}
	cl, ok := link.(cidlink.Link)
	if !ok {
		return cid.Undef, fmt.Errorf("unexpected link type %T", link)
	}
	return cl.Cid, nil
}

// DecodeAny parses raw dag-cbor bytes into an ipld-prime node without going
// through the store (used by components that already have the bytes, e.g.
// the importer scanning for the pipeline block).
func DecodeAny(data []byte) (datamodel.Node, error) {
	builder := basicnode.Prototype.Any.NewBuilder()
	if err := dagcbor.Decode(builder, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode dag-cbor: %w", err)
	}
	return builder.Build(), nil
}

// EncodeAny serializes an ipld-prime node to canonical dag-cbor bytes.
func EncodeAny(node datamodel.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := dagcbor.Encode(node, &buf); err != nil {
		return nil, fmt.Errorf("encode dag-cbor: %w", err)
	}
	return buf.Bytes(), nil
}
