// Command weave validates, serves, replays and tests reactive applications.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/weave/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
