package main

import (
	"flag"
	"os"

	"github.com/flowsched/flowsched/cmd/flowsched/cmd"
)

func main() {
	// glog registers its flags on the default FlagSet; parse it so -v and
	// friends work even though cobra owns the rest of the command line.
	flag.Parse()

	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
