// Command linkrepo manages named objects and rule-maintained links between
// them.
package main

import (
	"os"

	"github.com/mesh-intelligence/linkrepo/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
