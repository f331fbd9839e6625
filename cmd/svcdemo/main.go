// svcdemo drives the service container from the command line: it installs
// a small graph of illustrative services, waits for the graph to settle,
// and reports what came up.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
