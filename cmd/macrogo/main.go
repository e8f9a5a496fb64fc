// Command macrogo expands dependency-injection macros written as annotations
// in Go doc comments.
//
// Usage:
//
//	macrogo generate [packages]
//	macrogo expand <file>
//	macrogo list [packages]
//	macrogo macros
//	macrogo watch [packages]
//
// Run "macrogo help <command>" for the flags of each command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhump/dimacros/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
