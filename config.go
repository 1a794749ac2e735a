// Package holium collects the process-wide configuration the CLI boundary
// constructs and threads down to the core packages (spec §6's
// "Configuration" collaborator note): the core itself observes none of
// these values directly, but the thin demonstration CLI built into this
// repository does.
package holium

import (
	"path/filepath"
	"time"

	badger4 "github.com/ipfs/go-ds-badger4"
)

// DefaultHoliumDirName is the directory name `init` creates at the project
// root, holding the interplanetary area, the local store, and the
// portations file (spec §6's on-disk layout).
const DefaultHoliumDirName = ".holium"

// Config bundles the project root, badger options and a wasm invocation
// timeout; of these the CLI surface sets only the root. It is built with
// functional defaults, mirroring the
// teacher's Options-struct-with-PRAGMA-defaults pattern.
type Config struct {
	// Root is the project directory containing HoliumDir.
	Root string
	// HoliumDirName overrides DefaultHoliumDirName.
	HoliumDirName string
	// BadgerOptions holds badger options for the local store. Nothing reads
	// it: localstore.Open always uses badger4.DefaultOptions.
	BadgerOptions badger4.Options
	// WasmTimeout records a wasm invocation timeout. Nothing reads it: the
	// executor bounds no transformation invocation, whatever its value.
	WasmTimeout time.Duration
}

// NewConfig builds a Config rooted at root with the teacher's default
// badger options and no wasm timeout.
func NewConfig(root string) Config {
	return Config{
		Root:          root,
		HoliumDirName: DefaultHoliumDirName,
		BadgerOptions: badger4.DefaultOptions,
	}
}

// HoliumDir returns the configured holium directory's full path.
func (c Config) HoliumDir() string {
	name := c.HoliumDirName
	if name == "" {
		name = DefaultHoliumDirName
	}
	return filepath.Join(c.Root, name)
}
