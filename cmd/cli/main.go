// gclog parses G1 garbage collector logs into region transitions and
// time-based heap sizing events.
package main

import (
	"os"

	"github.com/ccollicutt/gclog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
