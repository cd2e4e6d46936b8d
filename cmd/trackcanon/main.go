package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"trackcanon/cmd/trackcanon/commands"
)

var version = "dev"

func main() {
	root := commands.NewRootCommand(version)

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
