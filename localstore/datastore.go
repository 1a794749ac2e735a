// Package localstore implements the mutable local area (spec §4.6): a
// badger-backed keyed store holding editable pipeline entities across five
// logical trees (data, sources, shapers, transformations, connections), with
// merge-by-patch semantics for partial updates.
package localstore

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	badger4 "github.com/ipfs/go-ds-badger4"
)

// Datastore is the narrow badger capability Store needs: the base
// key/value operations plus prefix-scoped key listing, which is the one
// primitive every logical tree's name-listing (ListSourceNames,
// ListShaperNames, ...) is built from. Unlike a generic KV facade, it
// carries no whole-store iterate/merge/clear surface — the five logical
// trees are always addressed by their own prefix, never as one flat space.
type Datastore interface {
	ds.Datastore

	// Keys streams every key under prefix, with no values attached.
	// Returns a channel of keys and an error channel (surfaces
	// Query/Next/ctx.Done() errors).
	Keys(ctx context.Context, prefix ds.Key) (<-chan ds.Key, <-chan error, error)
}

var _ Datastore = (*datastorage)(nil)

type datastorage struct {
	*badger4.Datastore
}

// NewDatastorage opens (creating if absent) a badger-backed Datastore at
// path.
func NewDatastorage(path string, opts *badger4.Options) (Datastore, error) {
	badgerDS, err := badger4.NewDatastore(path, opts)
	if err != nil {
		return nil, err
	}
	return &datastorage{Datastore: badgerDS}, nil
}

// Keys streams every key under prefix, one logical tree at a time.
func (s *datastorage) Keys(ctx context.Context, prefix ds.Key) (<-chan ds.Key, <-chan error, error) {
	result, err := s.Datastore.Query(ctx, query.Query{
		Prefix:   prefix.String(),
		KeysOnly: true,
	})
	if err != nil {
		return nil, nil, err
	}

	out := make(chan ds.Key)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		defer result.Close()

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			case res, ok := <-result.Next():
				if !ok {
					return
				}
				if res.Error != nil {
					errc <- res.Error
					return
				}
				out <- ds.NewKey(res.Key)
			}
		}
	}()

	return out, errc, nil
}

func (s *datastorage) Close() error {
	return s.Datastore.Close()
}
