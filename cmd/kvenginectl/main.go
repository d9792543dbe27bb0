// Command kvenginectl is the CLI surface for the adaptive hash-map engine
// (spec §6): one-shot key/value ops, CSV workload generation and replay,
// and snapshot verification/compaction, all against the chaining,
// RobinHood, or hybrid adaptive back-ends.
package main

import (
	"os"

	"github.com/jguida941/adaptive-hashmap-studio/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
