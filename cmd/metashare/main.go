// Command metashare decodes ledger social messages into an entity store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/metashare/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
