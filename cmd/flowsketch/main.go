// Command flowsketch edits node-link diagrams through a small command language.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/flowsketch/internal/cli"
	fserrors "github.com/matzehuels/flowsketch/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context) int {
	c := cli.New(os.Stderr)
	err := c.RootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		c.Logger.Error(fserrors.UserMessage(err), "code", fserrors.GetCode(err))
		return 1
	}
}
