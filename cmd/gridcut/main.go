// Package main is the entry point of gridcut, the command-line driver of
// the gridflow solver.
//
// gridcut loads a problem definition (grid shape, connectivity, terminal
// weights, edge capacities) from a YAML file, runs the region-parallel
// push-relabel solver and prints the flow and work counters; with --segment
// it also prints the cut side of every node and a source/sink count. The
// solver itself never depends on the driver.
package main

import (
	"os"

	"gridflow/cmd/gridcut/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
