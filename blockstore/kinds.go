package blockstore

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Discriminant values for every versioned block kind (spec §4.2's
// "typedVersion" rule).
const (
	TypedVersionScalarDataEnvelope     = "sde_0"
	TypedVersionRecursiveDataEnvelope  = "rde_0"
	TypedVersionModuleBytecodeEnvelope = "mbe_0"
	TypedVersionDryTransformation      = "dt_0"
	TypedVersionMetadata               = "meta_0"
	TypedVersionConnection             = "conn_0"
	TypedVersionPipeline               = "pl_0"
)

// ErrUnknownDiscriminant is returned when a dag-cbor map's "typedVersion"
// entry names a kind/version this implementation does not recognize.
type ErrUnknownDiscriminant struct{ Got string }

func (e ErrUnknownDiscriminant) Error() string {
	return fmt.Sprintf("unknown typedVersion discriminant %q", e.Got)
}

// PeekDiscriminant reads the "typedVersion" discriminant of an already
// decoded dag-cbor map node, without validating it against a specific
// expected kind. Callers that need to dispatch on block kind (e.g. the
// data-tree codec distinguishing scalar- from recursive-data envelopes) use
// this instead of a kind-specific Get*.
func PeekDiscriminant(node datamodel.Node) (string, error) {
	return readDiscriminant(node)
}

func readDiscriminant(node datamodel.Node) (string, error) {
	tv, err := node.LookupByString("typedVersion")
	if err != nil {
		return "", fmt.Errorf("missing typedVersion entry: %w", err)
	}
	s, err := tv.AsString()
	if err != nil {
		return "", fmt.Errorf("typedVersion is not a string: %w", err)
	}
	return s, nil
}

// ScalarDataEnvelope wraps a scalar-data block's CID (spec §4.2).
type ScalarDataEnvelope struct {
	Content cid.Cid
}

// PutScalarDataEnvelope writes the envelope pointing at an already-stored
// scalar-data block.
func PutScalarDataEnvelope(ctx context.Context, s *Store, scalarDataCID cid.Cid) (cid.Cid, error) {
	node, err := buildDiscriminantLinkMap(TypedVersionScalarDataEnvelope, scalarDataCID)
	if err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, node)
}

// GetScalarDataEnvelope reads and validates an envelope block.
func GetScalarDataEnvelope(ctx context.Context, s *Store, c cid.Cid) (ScalarDataEnvelope, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return ScalarDataEnvelope{}, err
	}
	if err := expectDiscriminant(node, TypedVersionScalarDataEnvelope); err != nil {
		return ScalarDataEnvelope{}, err
	}
	contentNode, err := node.LookupByString("content")
	if err != nil {
		return ScalarDataEnvelope{}, fmt.Errorf("scalar-data envelope missing content: %w", err)
	}
	contentCID, err := CIDFromLinkNode(contentNode)
	if err != nil {
		return ScalarDataEnvelope{}, err
	}
	return ScalarDataEnvelope{Content: contentCID}, nil
}

// RecursiveDataEnvelope wraps a recursive-data block's CID.
type RecursiveDataEnvelope struct {
	Content cid.Cid
}

func PutRecursiveDataEnvelope(ctx context.Context, s *Store, recursiveDataCID cid.Cid) (cid.Cid, error) {
	node, err := buildDiscriminantLinkMap(TypedVersionRecursiveDataEnvelope, recursiveDataCID)
	if err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, node)
}

func GetRecursiveDataEnvelope(ctx context.Context, s *Store, c cid.Cid) (RecursiveDataEnvelope, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return RecursiveDataEnvelope{}, err
	}
	if err := expectDiscriminant(node, TypedVersionRecursiveDataEnvelope); err != nil {
		return RecursiveDataEnvelope{}, err
	}
	contentNode, err := node.LookupByString("content")
	if err != nil {
		return RecursiveDataEnvelope{}, fmt.Errorf("recursive-data envelope missing content: %w", err)
	}
	contentCID, err := CIDFromLinkNode(contentNode)
	if err != nil {
		return RecursiveDataEnvelope{}, err
	}
	return RecursiveDataEnvelope{Content: contentCID}, nil
}

// RecursiveData is the plain (undiscriminated) `{content: [link,...]}` block
// holding the ordered child CIDs of a recursive HoliumCBOR value.
type RecursiveData struct {
	Elements []cid.Cid
}

func PutRecursiveData(ctx context.Context, s *Store, elements []cid.Cid) (cid.Cid, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(1)
	if err != nil {
		return cid.Undef, err
	}
	entry, err := ma.AssembleEntry("content")
	if err != nil {
		return cid.Undef, err
	}
	la, err := entry.BeginList(int64(len(elements)))
	if err != nil {
		return cid.Undef, err
	}
	for _, c := range elements {
		if err := la.AssembleValue().AssignLink(LinkTo(c)); err != nil {
			return cid.Undef, err
		}
	}
	if err := la.Finish(); err != nil {
		return cid.Undef, err
	}
	if err := ma.Finish(); err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, builder.Build())
}

func GetRecursiveData(ctx context.Context, s *Store, c cid.Cid) (RecursiveData, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return RecursiveData{}, err
	}
	contentNode, err := node.LookupByString("content")
	if err != nil {
		return RecursiveData{}, fmt.Errorf("recursive-data missing content: %w", err)
	}
	n := contentNode.Length()
	elements := make([]cid.Cid, 0, n)
	it := contentNode.ListIterator()
	for !it.Done() {
		_, v, err := it.Next()
		if err != nil {
			return RecursiveData{}, err
		}
		c, err := CIDFromLinkNode(v)
		if err != nil {
			return RecursiveData{}, err
		}
		elements = append(elements, c)
	}
	return RecursiveData{Elements: elements}, nil
}

// ModuleBytecodeEnvelope wraps a raw wasm-bytecode block's CID.
type ModuleBytecodeEnvelope struct {
	Content cid.Cid
}

func PutModuleBytecodeEnvelope(ctx context.Context, s *Store, bytecodeCID cid.Cid) (cid.Cid, error) {
	node, err := buildDiscriminantLinkMap(TypedVersionModuleBytecodeEnvelope, bytecodeCID)
	if err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, node)
}

func GetModuleBytecodeEnvelope(ctx context.Context, s *Store, c cid.Cid) (ModuleBytecodeEnvelope, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return ModuleBytecodeEnvelope{}, err
	}
	if err := expectDiscriminant(node, TypedVersionModuleBytecodeEnvelope); err != nil {
		return ModuleBytecodeEnvelope{}, err
	}
	contentNode, err := node.LookupByString("content")
	if err != nil {
		return ModuleBytecodeEnvelope{}, fmt.Errorf("module-bytecode envelope missing content: %w", err)
	}
	contentCID, err := CIDFromLinkNode(contentNode)
	if err != nil {
		return ModuleBytecodeEnvelope{}, err
	}
	return ModuleBytecodeEnvelope{Content: contentCID}, nil
}

// DryTransformation links a module-bytecode envelope with the handle name to
// invoke inside it.
type DryTransformation struct {
	ModuleBytecodeEnvelope cid.Cid
	Handle                 string
}

func PutDryTransformation(ctx context.Context, s *Store, mbeCID cid.Cid, handle string) (cid.Cid, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(2)
	if err != nil {
		return cid.Undef, err
	}
	if err := assembleString(ma, "typedVersion", TypedVersionDryTransformation); err != nil {
		return cid.Undef, err
	}
	entry, err := ma.AssembleEntry("content")
	if err != nil {
		return cid.Undef, err
	}
	la, err := entry.BeginList(2)
	if err != nil {
		return cid.Undef, err
	}
	if err := la.AssembleValue().AssignLink(LinkTo(mbeCID)); err != nil {
		return cid.Undef, err
	}
	if err := la.AssembleValue().AssignString(handle); err != nil {
		return cid.Undef, err
	}
	if err := la.Finish(); err != nil {
		return cid.Undef, err
	}
	if err := ma.Finish(); err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, builder.Build())
}

func GetDryTransformation(ctx context.Context, s *Store, c cid.Cid) (DryTransformation, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return DryTransformation{}, err
	}
	if err := expectDiscriminant(node, TypedVersionDryTransformation); err != nil {
		return DryTransformation{}, err
	}
	contentNode, err := node.LookupByString("content")
	if err != nil {
		return DryTransformation{}, fmt.Errorf("dry-transformation missing content: %w", err)
	}
	mbeNode, err := contentNode.LookupByIndex(0)
	if err != nil {
		return DryTransformation{}, err
	}
	mbeCID, err := CIDFromLinkNode(mbeNode)
	if err != nil {
		return DryTransformation{}, err
	}
	handleNode, err := contentNode.LookupByIndex(1)
	if err != nil {
		return DryTransformation{}, err
	}
	handle, err := handleNode.AsString()
	if err != nil {
		return DryTransformation{}, err
	}
	return DryTransformation{ModuleBytecodeEnvelope: mbeCID, Handle: handle}, nil
}

// Metadata names a vertex and carries its schema(s): a single `schema` for
// sources/shapers, or `schema_in`+`schema_out` for transformations.
type Metadata struct {
	Name      string
	Schema    *string
	SchemaIn  *string
	SchemaOut *string
}

func PutMetadata(ctx context.Context, s *Store, m Metadata) (cid.Cid, error) {
	fieldCount := 2 // typedVersion + name
	if m.Schema != nil {
		fieldCount++
	}
	if m.SchemaIn != nil {
		fieldCount++
	}
	if m.SchemaOut != nil {
		fieldCount++
	}
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(int64(fieldCount))
	if err != nil {
		return cid.Undef, err
	}
	if err := assembleString(ma, "typedVersion", TypedVersionMetadata); err != nil {
		return cid.Undef, err
	}
	if err := assembleString(ma, "name", m.Name); err != nil {
		return cid.Undef, err
	}
	if m.Schema != nil {
		if err := assembleString(ma, "schema", *m.Schema); err != nil {
			return cid.Undef, err
		}
	}
	if m.SchemaIn != nil {
		if err := assembleString(ma, "schema_in", *m.SchemaIn); err != nil {
			return cid.Undef, err
		}
	}
	if m.SchemaOut != nil {
		if err := assembleString(ma, "schema_out", *m.SchemaOut); err != nil {
			return cid.Undef, err
		}
	}
	if err := ma.Finish(); err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, builder.Build())
}

func GetMetadata(ctx context.Context, s *Store, c cid.Cid) (Metadata, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return Metadata{}, err
	}
	if err := expectDiscriminant(node, TypedVersionMetadata); err != nil {
		return Metadata{}, err
	}
	nameNode, err := node.LookupByString("name")
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata missing name: %w", err)
	}
	name, err := nameNode.AsString()
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{Name: name}
	if s, ok := lookupOptionalString(node, "schema"); ok {
		m.Schema = &s
	}
	if s, ok := lookupOptionalString(node, "schema_in"); ok {
		m.SchemaIn = &s
	}
	if s, ok := lookupOptionalString(node, "schema_out"); ok {
		m.SchemaOut = &s
	}
	return m, nil
}

// Connection links a tail and a head selector envelope.
type Connection struct {
	TailSelector cid.Cid
	HeadSelector cid.Cid
}

func PutConnection(ctx context.Context, s *Store, tail, head cid.Cid) (cid.Cid, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(2)
	if err != nil {
		return cid.Undef, err
	}
	if err := assembleString(ma, "typedVersion", TypedVersionConnection); err != nil {
		return cid.Undef, err
	}
	entry, err := ma.AssembleEntry("content")
	if err != nil {
		return cid.Undef, err
	}
	la, err := entry.BeginList(2)
	if err != nil {
		return cid.Undef, err
	}
	if err := la.AssembleValue().AssignLink(LinkTo(tail)); err != nil {
		return cid.Undef, err
	}
	if err := la.AssembleValue().AssignLink(LinkTo(head)); err != nil {
		return cid.Undef, err
	}
	if err := la.Finish(); err != nil {
		return cid.Undef, err
	}
	if err := ma.Finish(); err != nil {
		return cid.Undef, err
	}
	return s.PutNode(ctx, builder.Build())
}

func GetConnection(ctx context.Context, s *Store, c cid.Cid) (Connection, error) {
	node, err := s.GetNode(ctx, c)
	if err != nil {
		return Connection{}, err
	}
	if err := expectDiscriminant(node, TypedVersionConnection); err != nil {
		return Connection{}, err
	}
	contentNode, err := node.LookupByString("content")
	if err != nil {
		return Connection{}, fmt.Errorf("connection missing content: %w", err)
	}
	tailNode, err := contentNode.LookupByIndex(0)
	if err != nil {
		return Connection{}, err
	}
	tailCID, err := CIDFromLinkNode(tailNode)
	if err != nil {
		return Connection{}, err
	}
	headNode, err := contentNode.LookupByIndex(1)
	if err != nil {
		return Connection{}, err
	}
	headCID, err := CIDFromLinkNode(headNode)
	if err != nil {
		return Connection{}, err
	}
	return Connection{TailSelector: tailCID, HeadSelector: headCID}, nil
}

func buildDiscriminantLinkMap(discriminant string, content cid.Cid) (datamodel.Node, error) {
	builder := basicnode.Prototype.Map.NewBuilder()
	ma, err := builder.BeginMap(2)
	if err != nil {
		return nil, err
	}
	if err := assembleString(ma, "typedVersion", discriminant); err != nil {
		return nil, err
	}
	entry, err := ma.AssembleEntry("content")
	if err != nil {
		return nil, err
	}
	if err := entry.AssignLink(LinkTo(content)); err != nil {
		return nil, err
	}
	if err := ma.Finish(); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

func assembleString(ma datamodel.MapAssembler, key, value string) error {
	entry, err := ma.AssembleEntry(key)
	if err != nil {
		return err
	}
	return entry.AssignString(value)
}

func lookupOptionalString(node datamodel.Node, key string) (string, bool) {
	n, err := node.LookupByString(key)
	if err != nil {
		return "", false
	}
	s, err := n.AsString()
	if err != nil {
		return "", false
	}
	return s, true
}

func expectDiscriminant(node datamodel.Node, want string) error {
	got, err := readDiscriminant(node)
	if err != nil {
		return err
	}
	if got != want {
		return ErrUnknownDiscriminant{Got: got}
	}
	return nil
}
