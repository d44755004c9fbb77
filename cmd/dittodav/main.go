// Command dittodav runs the DittoDAV WebDAV server and its admin commands.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dittodav/cmd/dittodav/commands"
)

// Set with -ldflags "-X main.version=..." at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version, commands.Commit, commands.Date = version, commit, date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dittodav:", err)
		os.Exit(1)
	}
}
