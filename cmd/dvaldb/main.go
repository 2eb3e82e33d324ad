// Command dvaldb stores and queries Dval objects in SQLite or Postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/dvaldb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
