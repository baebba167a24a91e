// Command rtdctl computes rank-turbulence divergence from the command line.
//
// Usage:
//
//	rtdctl compare words-2019.tsv words-2020.tsv --preset sensitive --top 20
//	rtdctl divergence --ranks1 1,2,3 --ranks2 1,3,2 --counts1 3,2,1 --counts2 3,1,2 --alpha inf
package main

import (
	"os"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
