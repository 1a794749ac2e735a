package main

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"holium/blockstore"
)

// catBlock prints a block's discriminant (or "raw" for an opaque/binary
// block) and a short summary of its decoded shape. It is read-only and never
// touches the local store, matching cat's role as an interplanetary-area
// inspection tool (SPEC_FULL §4.15).
func catBlock(ctx context.Context, bs *blockstore.Store, cidStr string) error {
	c, err := cid.Decode(cidStr)
	if err != nil {
		return fmt.Errorf("cat: invalid cid %q: %w", cidStr, err)
	}

	raw, err := bs.GetRaw(ctx, c)
	if err != nil {
		return fmt.Errorf("cat: %w", err)
	}

	node, err := blockstore.DecodeAny(raw)
	if err != nil {
		fmt.Printf("%s: raw block, %d bytes\n", c, len(raw))
		return nil
	}

	discriminant, err := blockstore.PeekDiscriminant(node)
	if err != nil {
		fmt.Printf("%s: dag-cbor block, %d bytes, no typedVersion discriminant\n", c, len(raw))
		return nil
	}

	switch discriminant {
	case blockstore.TypedVersionMetadata:
		m, err := blockstore.GetMetadata(ctx, bs, c)
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		fmt.Printf("%s: metadata name=%q\n", c, m.Name)
	case blockstore.TypedVersionDryTransformation:
		dt, err := blockstore.GetDryTransformation(ctx, bs, c)
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		fmt.Printf("%s: dry-transformation handle=%q module=%s\n", c, dt.Handle, dt.ModuleBytecodeEnvelope)
	case blockstore.TypedVersionConnection:
		conn, err := blockstore.GetConnection(ctx, bs, c)
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		fmt.Printf("%s: connection tail=%s head=%s\n", c, conn.TailSelector, conn.HeadSelector)
	case blockstore.TypedVersionScalarDataEnvelope:
		env, err := blockstore.GetScalarDataEnvelope(ctx, bs, c)
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		fmt.Printf("%s: scalar-data envelope content=%s\n", c, env.Content)
	case blockstore.TypedVersionRecursiveDataEnvelope:
		env, err := blockstore.GetRecursiveDataEnvelope(ctx, bs, c)
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		fmt.Printf("%s: recursive-data envelope content=%s\n", c, env.Content)
	case blockstore.TypedVersionModuleBytecodeEnvelope:
		env, err := blockstore.GetModuleBytecodeEnvelope(ctx, bs, c)
		if err != nil {
			return fmt.Errorf("cat: %w", err)
		}
		fmt.Printf("%s: module-bytecode envelope content=%s\n", c, env.Content)
	case blockstore.TypedVersionPipeline:
		fmt.Printf("%s: pipeline block, %d bytes\n", c, len(raw))
	default:
		fmt.Printf("%s: unrecognized discriminant %q, %d bytes\n", c, discriminant, len(raw))
	}
	return nil
}
