package main

import (
	"context"
	"log/slog"
	"os"

	"tractor.dev/toolkit-go/engine/cli"
	"tractor.dev/sandbundle/installer"
	"tractor.dev/sandbundle/vfs"
)

func installCmd() *cli.Command {
	var registryBaseURL string
	cmd := &cli.Command{
		Usage: "install <dir>",
		Short: "resolve and install npm dependencies into <dir>/node_modules",
		Args:  cli.MinArgs(1),
		Run: func(ctx *cli.Context, args []string) {
			dir := args[0]

			fsys := vfs.New()
			fsys.Chdir("/")
			if err := loadDirIntoFS(fsys, dir); err != nil {
				fatal(err)
			}

			in := installer.New()
			reg := installer.NewHTTPRegistry(registryBaseURL)
			err := in.Install(context.Background(), fsys, installer.Options{
				Registry: reg,
				Progress: func(kind, message string) {
					slog.Info(message, "kind", kind)
				},
			})
			if err != nil {
				fatal(err)
			}

			if err := flushFSToDir(fsys, "node_modules", dir); err != nil {
				fatal(err)
			}
			if err := flushFSToDir(fsys, "~system", dir); err != nil {
				fatal(err)
			}
			os.Exit(0)
		},
	}
	cmd.Flags().StringVar(&registryBaseURL, "registry", "https://esm.sh", "registry base URL")
	return cmd
}
