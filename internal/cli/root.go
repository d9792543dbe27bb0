// Package cli builds the kvenginectl command surface (spec §6) on top of
// github.com/spf13/cobra: one cobra.Command per command in the table,
// persistent --mode/--config/--json flags on the root command, and a
// single error-to-exit-code boundary (Execute) that converts an
// engineerr.Error into the structured §7 envelope and the matching
// process exit code.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// globals holds the flags every subcommand inherits from the root
// command (spec §6: "all commands accept a global --mode, --config,
// --json").
type globals struct {
	mode       string
	configPath string
	json       bool
	verbose    int
}

// Execute parses args against the full command tree and returns the
// process exit code (spec §7). stdout/stderr let tests capture output
// without touching the real process streams.
func Execute(args []string, stdout, stderr io.Writer) int {
	g := &globals{}
	root := newRootCmd(g, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		return writeError(stderr, classifyCobraErr(err), g.json)
	}
	return 0
}

func newRootCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "kvenginectl",
		Short:         "Adaptive hash-map engine: one-shot ops, workload replay, and snapshot tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.mode, "mode", string(ModeAdaptive),
		"back-end mode: fast-insert|fast-lookup|memory-tight|adaptive")
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a TOML configuration file")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "emit structured JSON envelopes on stdout")
	root.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "increase log verbosity (-v, -vv)")

	root.AddCommand(
		newPutCmd(g, stdout),
		newGetCmd(g, stdout),
		newDelCmd(g, stdout),
		newItemsCmd(g, stdout),
		newGenerateCSVCmd(g, stdout),
		newProfileCmd(g, stdout, stderr),
		newRunCSVCmd(g, stdout, stderr),
		newVerifySnapshotCmd(g, stdout),
		newCompactSnapshotCmd(g, stdout),
	)
	return root
}

// classifyCobraErr wraps a cobra-level failure (bad flags, unknown
// command — cobra never calls our RunE in that case) as BadInput so it
// still exits 2 and reports through the same envelope as an engine error.
func classifyCobraErr(err error) error {
	if _, ok := err.(interface{ Unwrap() error }); ok {
		return err // already one of ours, passed through RunE
	}
	return reclassify(err)
}
