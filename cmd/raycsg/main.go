// Command raycsg evaluates CSG scenes along rays.
package main

import (
	"fmt"
	"os"

	"github.com/chazu/raycsg/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
