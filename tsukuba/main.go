// Tsukuba is the command-line tool of the Tsukuba kernel simulator. It can
// run demo simulations, summarize recorded traces, and scaffold new driver
// packages.
package main

import "github.com/esyslab/tsukuba/tsukuba/cmd"

func main() {
	cmd.Execute()
}
