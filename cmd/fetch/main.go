package main

import (
    "context"
    "flag"
    "os"
    "os/signal"
    "path"

    "github.com/google/subcommands"
)

func main() {
    commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
    commander.Register(commander.HelpCommand(), "")
    commander.Register(commander.FlagsCommand(), "")
    commander.Register(&quoteCmd{}, "quotes")
    commander.Register(&seriesCmd{}, "quotes")
    commander.Register(&searchCmd{}, "search")

    flag.Parse()
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
    defer stop()
    os.Exit(int(commander.Execute(ctx)))
}
