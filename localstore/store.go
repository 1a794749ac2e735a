package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ds "github.com/ipfs/go-datastore"
	badger4 "github.com/ipfs/go-ds-badger4"

	"holium/selector"
)

// Tree name prefixes for the five logical trees a local area holds (spec
// §4.6). Each is a top-level ds.Key namespace.
var (
	treeData           = ds.NewKey("/data")
	treeSources         = ds.NewKey("/sources")
	treeShapers         = ds.NewKey("/shapers")
	treeTransformations = ds.NewKey("/transformations")
	treeConnections     = ds.NewKey("/connections")
)

// ErrNotFound is returned when a keyed entry does not exist in any of the
// local area's trees.
var ErrNotFound = errors.New("entry not found in local area")

// Store is the mutable local area: a keyed store over five logical trees,
// backed by badger (spec §4.6).
type Store struct {
	ds Datastore
}

// Open opens (creating if absent) a badger-backed local area at path.
func Open(path string) (*Store, error) {
	d, err := NewDatastorage(path, &badger4.DefaultOptions)
	if err != nil {
		return nil, fmt.Errorf("open local area at %s: %w", path, err)
	}
	return &Store{ds: d}, nil
}

// Close releases the underlying badger handles.
func (s *Store) Close() error { return s.ds.Close() }

func (s *Store) get(ctx context.Context, key ds.Key, out any) error {
	raw, err := s.ds.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key ds.Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.ds.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, key ds.Key) error {
	if err := s.ds.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) listNamesUnderPrefix(ctx context.Context, prefix ds.Key) ([]string, error) {
	keyc, errc, err := s.ds.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	var names []string
	for keyc != nil || errc != nil {
		select {
		case k, ok := <-keyc:
			if !ok {
				keyc = nil
				continue
			}
			segments := strings.Split(k.String(), "/")
			names = append(names, segments[len(segments)-1])
		case e, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if e != nil {
				return nil, fmt.Errorf("list %s: %w", prefix, e)
			}
		}
	}
	return names, nil
}

// --- Source / Shaper records ---

// SourceRecord is the editable state of a source vertex: a single JSON
// schema constraining the data it carries.
type SourceRecord struct {
	JSONSchema string `json:"json_schema"`
}

// ShaperRecord is the editable state of a shaper vertex.
type ShaperRecord struct {
	JSONSchema string `json:"json_schema"`
}

// OptionalSourceRecord is a partial SourceRecord used for merge-updates
// (spec §4.6, §9 "OptionalEntity" design note).
type OptionalSourceRecord struct {
	JSONSchema *string `json:"json_schema,omitempty"`
}

// OptionalShaperRecord is the shaper equivalent of OptionalSourceRecord.
type OptionalShaperRecord struct {
	JSONSchema *string `json:"json_schema,omitempty"`
}

func (p OptionalSourceRecord) merge(old SourceRecord) SourceRecord {
	if p.JSONSchema != nil {
		old.JSONSchema = *p.JSONSchema
	}
	return old
}

func (p OptionalShaperRecord) merge(old ShaperRecord) ShaperRecord {
	if p.JSONSchema != nil {
		old.JSONSchema = *p.JSONSchema
	}
	return old
}

// PutSource replaces a source's full record.
func (s *Store) PutSource(ctx context.Context, name string, rec SourceRecord) error {
	if err := ValidateNodeName(name); err != nil {
		return err
	}
	return s.put(ctx, treeSources.ChildString(name), rec)
}

// GetSource reads a source's full record.
func (s *Store) GetSource(ctx context.Context, name string) (SourceRecord, error) {
	var rec SourceRecord
	err := s.get(ctx, treeSources.ChildString(name), &rec)
	return rec, err
}

// MergeSource applies a partial update to a source, creating it if absent.
func (s *Store) MergeSource(ctx context.Context, name string, patch OptionalSourceRecord) error {
	old, err := s.GetSource(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.PutSource(ctx, name, patch.merge(old))
}

// DeleteSource removes a source.
func (s *Store) DeleteSource(ctx context.Context, name string) error {
	return s.delete(ctx, treeSources.ChildString(name))
}

// ListSourceNames lists all source (untyped) names.
func (s *Store) ListSourceNames(ctx context.Context) ([]string, error) {
	return s.listNamesUnderPrefix(ctx, treeSources)
}

// PutShaper replaces a shaper's full record.
func (s *Store) PutShaper(ctx context.Context, name string, rec ShaperRecord) error {
	if err := ValidateNodeName(name); err != nil {
		return err
	}
	return s.put(ctx, treeShapers.ChildString(name), rec)
}

// GetShaper reads a shaper's full record.
func (s *Store) GetShaper(ctx context.Context, name string) (ShaperRecord, error) {
	var rec ShaperRecord
	err := s.get(ctx, treeShapers.ChildString(name), &rec)
	return rec, err
}

// MergeShaper applies a partial update to a shaper, creating it if absent.
func (s *Store) MergeShaper(ctx context.Context, name string, patch OptionalShaperRecord) error {
	old, err := s.GetShaper(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.PutShaper(ctx, name, patch.merge(old))
}

// DeleteShaper removes a shaper.
func (s *Store) DeleteShaper(ctx context.Context, name string) error {
	return s.delete(ctx, treeShapers.ChildString(name))
}

// ListShaperNames lists all shaper (untyped) names.
func (s *Store) ListShaperNames(ctx context.Context) ([]string, error) {
	return s.listNamesUnderPrefix(ctx, treeShapers)
}

// --- Transformation records ---

// TransformationRecord is the editable state of a transformation vertex: its
// wasm bytecode, entry-point handle, and input/output schemas.
type TransformationRecord struct {
	Bytecode  []byte `json:"bytecode"`
	Handle    string `json:"handle"`
	SchemaIn  string `json:"schema_in"`
	SchemaOut string `json:"schema_out"`
}

// OptionalTransformationRecord is a partial TransformationRecord for
// merge-updates.
type OptionalTransformationRecord struct {
	Bytecode  []byte  `json:"bytecode,omitempty"`
	Handle    *string `json:"handle,omitempty"`
	SchemaIn  *string `json:"schema_in,omitempty"`
	SchemaOut *string `json:"schema_out,omitempty"`
}

func (p OptionalTransformationRecord) merge(old TransformationRecord) TransformationRecord {
	if p.Bytecode != nil {
		old.Bytecode = p.Bytecode
	}
	if p.Handle != nil {
		old.Handle = *p.Handle
	}
	if p.SchemaIn != nil {
		old.SchemaIn = *p.SchemaIn
	}
	if p.SchemaOut != nil {
		old.SchemaOut = *p.SchemaOut
	}
	return old
}

// PutTransformation replaces a transformation's full record.
func (s *Store) PutTransformation(ctx context.Context, name string, rec TransformationRecord) error {
	if err := ValidateNodeName(name); err != nil {
		return err
	}
	return s.put(ctx, treeTransformations.ChildString(name), rec)
}

// GetTransformation reads a transformation's full record.
func (s *Store) GetTransformation(ctx context.Context, name string) (TransformationRecord, error) {
	var rec TransformationRecord
	err := s.get(ctx, treeTransformations.ChildString(name), &rec)
	return rec, err
}

// MergeTransformation applies a partial update, creating the entry if absent.
func (s *Store) MergeTransformation(ctx context.Context, name string, patch OptionalTransformationRecord) error {
	old, err := s.GetTransformation(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.PutTransformation(ctx, name, patch.merge(old))
}

// DeleteTransformation removes a transformation.
func (s *Store) DeleteTransformation(ctx context.Context, name string) error {
	return s.delete(ctx, treeTransformations.ChildString(name))
}

// ListTransformationNames lists all transformation (untyped) names.
func (s *Store) ListTransformationNames(ctx context.Context) ([]string, error) {
	return s.listNamesUnderPrefix(ctx, treeTransformations)
}

// --- Connection records ---

// ConnectionRecord is the editable state of a connection: its tail and head
// selectors.
type ConnectionRecord struct {
	TailSelector selector.Selector `json:"tail_selector"`
	HeadSelector selector.Selector `json:"head_selector"`
}

// PutConnection replaces a connection's full record, keyed by its endpoints'
// typed names.
func (s *Store) PutConnection(ctx context.Context, tailTypedName, headTypedName string, rec ConnectionRecord) error {
	id := BuildConnectionID(tailTypedName, headTypedName)
	return s.put(ctx, treeConnections.ChildString(id), rec)
}

// GetConnection reads a connection's full record by its endpoints.
func (s *Store) GetConnection(ctx context.Context, tailTypedName, headTypedName string) (ConnectionRecord, error) {
	var rec ConnectionRecord
	err := s.get(ctx, treeConnections.ChildString(BuildConnectionID(tailTypedName, headTypedName)), &rec)
	return rec, err
}

// DeleteConnection removes a connection.
func (s *Store) DeleteConnection(ctx context.Context, tailTypedName, headTypedName string) error {
	return s.delete(ctx, treeConnections.ChildString(BuildConnectionID(tailTypedName, headTypedName)))
}

// ListConnectionIDs lists every connection's id (tailTypedName→headTypedName).
func (s *Store) ListConnectionIDs(ctx context.Context) ([]string, error) {
	return s.listNamesUnderPrefix(ctx, treeConnections)
}

// --- Data entries ---

// PutData writes a vertex's current HoliumCBOR output, keyed by its typed
// name.
func (s *Store) PutData(ctx context.Context, typedName string, holiumCBOR []byte) error {
	key := treeData.ChildString(typedName)
	if err := s.ds.Put(ctx, key, holiumCBOR); err != nil {
		return fmt.Errorf("put data %s: %w", typedName, err)
	}
	return nil
}

// GetData reads a vertex's current HoliumCBOR output.
func (s *Store) GetData(ctx context.Context, typedName string) ([]byte, error) {
	raw, err := s.ds.Get(ctx, treeData.ChildString(typedName))
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return nil, fmt.Errorf("get data %s: %w", typedName, ErrNotFound)
		}
		return nil, fmt.Errorf("get data %s: %w", typedName, err)
	}
	return raw, nil
}

// HasData reports whether a vertex currently has a persisted data entry.
func (s *Store) HasData(ctx context.Context, typedName string) (bool, error) {
	ok, err := s.ds.Has(ctx, treeData.ChildString(typedName))
	if err != nil {
		return false, fmt.Errorf("has data %s: %w", typedName, err)
	}
	return ok, nil
}

// DeleteData removes a vertex's persisted data entry.
func (s *Store) DeleteData(ctx context.Context, typedName string) error {
	return s.delete(ctx, treeData.ChildString(typedName))
}
