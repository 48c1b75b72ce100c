// Command runimport previews, imports and inspects workout CSV exports from
// the command line. Results go to stdout as JSON; logs go to stderr.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "failed: %v\n", err)
		os.Exit(1)
	}
}
