package main

import (
	"log"
	"log/slog"

	"tractor.dev/toolkit-go/engine"
	"tractor.dev/toolkit-go/engine/cli"
	"tractor.dev/sandbundle/internal/slogger"
)

func main() {
	slogger.Use(slog.LevelInfo)
	engine.Run(Main{})
}

type Main struct{}

func (m *Main) InitializeCLI(root *cli.Command) {
	root.Usage = "sandbundle-dev"
	root.AddCommand(devCmd())
	root.AddCommand(installCmd())
	root.AddCommand(bundleCmd())
}

func fatal(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
