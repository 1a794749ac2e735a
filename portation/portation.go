// Package portation defines the collaborator boundary that bridges external
// file formats to and from HoliumCBOR for a single vertex (spec §6, §4.11).
// Binding a vertex to a Portation is optional; a vertex with no binding
// depends entirely on upstream data or a previously persisted value.
package portation

import (
	"context"
	"io"
)

// Portation imports external data into HoliumCBOR, or exports HoliumCBOR
// back out to an external representation, for one vertex.
type Portation interface {
	// Import reads r, understood to hold data in this portation's external
	// format, and returns the equivalent HoliumCBOR bytes.
	Import(ctx context.Context, r io.Reader) ([]byte, error)
	// Export renders holiumCBOR to w in this portation's external format.
	Export(ctx context.Context, w io.Writer, holiumCBOR []byte) error
}

// ImportBinding pairs an import portation with the reader it should consume
// and a path recorded only for diagnostics.
type ImportBinding struct {
	Path      string
	Reader    io.Reader
	Portation Portation
}

// ExportBinding pairs an export portation with the writer it should render
// to and the external path that writer corresponds to — the path the
// executor reports back to the caller for every vertex it writes (spec
// §6's `run(...) → [(typed_name, external_path)]`).
type ExportBinding struct {
	Path      string
	Writer    io.Writer
	Portation Portation
}
