package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&serveCmd{}, "")
	commander.Register(&migrateCmd{}, "")

	flag.Parse()
	if flag.NArg() == 0 {
		// A bare invocation starts the server.
		flag.CommandLine.Parse([]string{"serve"})
	}
	os.Exit(int(commander.Execute(context.Background())))
}
