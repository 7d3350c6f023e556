package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tractor.dev/toolkit-go/engine/cli"
	"tractor.dev/sandbundle/vfs"
	"tractor.dev/sandbundle/workerpool"
)

// passthroughEngine is the dev harness's stand-in for the real WASM
// bundler, which only runs inside a browser. It lets `sandbundle-dev
// bundle` exercise the worker pool's dispatch and reset-FS-per-task
// plumbing against real files without a bundler.
type passthroughEngine struct{}

func (passthroughEngine) Transform(req workerpool.TransformRequest) (workerpool.TransformResult, error) {
	return workerpool.TransformResult{Code: req.Source}, nil
}

func (passthroughEngine) Build(req workerpool.BuildRequest) (workerpool.BuildResult, error) {
	out := make(map[string]string, len(req.Snapshot))
	for path, contents := range req.Snapshot {
		out[path] = contents
	}
	return workerpool.BuildResult{OutputFiles: out}, nil
}

func bundleCmd() *cli.Command {
	var outDir string
	cmd := &cli.Command{
		Usage: "bundle <dir>",
		Short: "run the worker pool's build request against <dir> using the dev passthrough engine",
		Args:  cli.MinArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			dir := args[0]

			fsys := vfs.New()
			if err := loadDirIntoFS(fsys, dir); err != nil {
				fatal(err)
			}

			manager := workerpool.NewManager(2, 2, 5, func() workerpool.Engine { return passthroughEngine{} })
			value, err := manager.Submit(context.Background(), workerpool.Request{
				Kind: workerpool.KindBuild,
				Build: &workerpool.BuildRequest{
					Snapshot: fsys.RawFiles(),
				},
			}, nil)
			if err != nil {
				fatal(err)
			}

			result := value.(workerpool.BuildResult)
			if outDir == "" {
				outDir = filepath.Join(dir, "dist")
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				fatal(err)
			}
			for path, contents := range result.OutputFiles {
				target := filepath.Join(outDir, path)
				if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
					fatal(err)
				}
				if err := os.WriteFile(target, []byte(contents), 0644); err != nil {
					fatal(err)
				}
			}
			fmt.Printf("wrote %d files to %s\n", len(result.OutputFiles), outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default <dir>/dist)")
	return cmd
}
