// Command spacesync runs the sync server.
//
// The main package stays minimal: all behaviour lives in internal/cli and
// the packages it wires together.
package main

import (
	"fmt"
	"os"

	"github.com/sakif/spacesync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
