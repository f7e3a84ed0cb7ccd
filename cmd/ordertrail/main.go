// Command ordertrail rebuilds order change logs from stored snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ordertrail/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
