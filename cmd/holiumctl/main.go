// Command holiumctl is the thin demonstration CLI surface over the core
// packages: init/export/import/run plus two supplemented inspection
// commands, cat and validate (spec §6, SPEC_FULL §4.13/§4.15). It wires
// A-K directly; it never embeds pipeline logic of its own.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"holium"
	"holium/blockstore"
	"holium/dag"
	"holium/exporter"
	"holium/importer"
	"holium/localstore"
	"holium/executor"
	"holium/wasmruntime"
)

func main() {
	app := &cli.App{
		Name:  "holiumctl",
		Usage: "inspect, export, import, and run HoliumCBOR transformation pipelines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Value:   ".",
				Usage:   "project root directory",
				EnvVars: []string{"HOLIUM_ROOT"},
			},
		},
		Commands: []*cli.Command{
			initCommand,
			exportCommand,
			importCommand,
			runCommand,
			catCommand,
			validateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func config(c *cli.Context) holium.Config {
	return holium.NewConfig(c.String("root"))
}

var initCommand = &cli.Command{
	Name:  "init",
	Usage: "create the holium directory, interplanetary area, and local store",
	Action: func(c *cli.Context) error {
		cfg := config(c)
		holiumDir := cfg.HoliumDir()
		if err := os.MkdirAll(holiumDir, 0o755); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		bs, err := blockstore.Open(holiumDir)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		ls, err := localstore.Open(filepath.Join(holiumDir, "local"))
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer ls.Close()
		_ = bs
		log.Printf("initialized holium project at %s", holiumDir)
		return nil
	},
}

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "export the local store's pipeline to the interplanetary area",
	Action: func(c *cli.Context) error {
		cfg := config(c)
		ctx := context.Background()
		ls, bs, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer ls.Close()
		pipelineCID, err := exporter.Export(ctx, ls, bs)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Println(pipelineCID.String())
		return nil
	},
}

var importCommand = &cli.Command{
	Name:  "import",
	Usage: "import a pipeline from the interplanetary area into the local store",
	Action: func(c *cli.Context) error {
		cfg := config(c)
		ctx := context.Background()
		ls, bs, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer ls.Close()
		if err := importer.Import(ctx, bs, ls); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		log.Printf("imported pipeline into %s", filepath.Join(cfg.HoliumDir(), "local"))
		return nil
	},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "validate the pipeline and execute every vertex in topological order",
	Action: func(c *cli.Context) error {
		cfg := config(c)
		ctx := context.Background()
		ls, _, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer ls.Close()

		g, order, err := buildAndValidate(ctx, ls)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		rt, err := wasmruntime.New(ctx)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer rt.Close(ctx)

		exported, err := executor.Run(ctx, ls, rt, g, order, executor.Options{})
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		for _, e := range exported {
			fmt.Printf("%s -> %s\n", e.TypedName, e.Path)
		}
		return nil
	},
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "check the local store's pipeline graph for cycles and disconnection",
	Action: func(c *cli.Context) error {
		cfg := config(c)
		ctx := context.Background()
		ls, _, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer ls.Close()

		if _, _, err := buildAndValidate(ctx, ls); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		fmt.Println("pipeline is valid")
		return nil
	},
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "print a block's discriminant and decoded shape",
	ArgsUsage: "<cid>",
	Action: func(c *cli.Context) error {
		cfg := config(c)
		if c.Args().Len() != 1 {
			return fmt.Errorf("cat: expected exactly one cid argument")
		}
		_, bs, err := openStores(cfg)
		if err != nil {
			return err
		}
		return catBlock(c.Context, bs, c.Args().First())
	},
}

func openStores(cfg holium.Config) (*localstore.Store, *blockstore.Store, error) {
	holiumDir := cfg.HoliumDir()
	bs, err := blockstore.Open(holiumDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open interplanetary area: %w", err)
	}
	ls, err := localstore.Open(filepath.Join(holiumDir, "local"))
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}
	return ls, bs, nil
}

func buildAndValidate(ctx context.Context, ls *localstore.Store) (*dag.Graph, []int, error) {
	g, err := dag.BuildFromLocalStore(ctx, ls)
	if err != nil {
		return nil, nil, err
	}
	order, err := g.Validate()
	if err != nil {
		return nil, nil, err
	}
	return g, order, nil
}
