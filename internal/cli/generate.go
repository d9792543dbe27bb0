package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/workload"
	"github.com/spf13/cobra"
)

func newGenerateCSVCmd(g *globals, stdout io.Writer) *cobra.Command {
	var (
		outfile            string
		ops                int
		readRatio          float64
		keySkew            float64
		keySpace           int
		seed               uint64
		adversarialRatio   float64
		adversarialLowBits int
	)
	cmd := &cobra.Command{
		Use:   "generate-csv",
		Short: "Synthesize a deterministic workload CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outfile == "" {
				return engineerr.BadInputf("generate-csv: --outfile is required")
			}
			f, err := os.Create(outfile)
			if err != nil {
				return engineerr.Wrap(engineerr.IO, err, "creating "+outfile)
			}
			defer f.Close()

			opts := workload.GenerateOptions{
				Ops: ops, ReadRatio: readRatio, KeySkew: keySkew, KeySpace: keySpace,
				Seed: seed, AdversarialRatio: adversarialRatio, AdversarialLowBits: adversarialLowBits,
			}
			if err := workload.Generate(f, opts); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return engineerr.Wrap(engineerr.IO, err, "closing "+outfile)
			}

			writeSuccess(stdout, map[string]any{"ok": true, "outfile": outfile, "ops": ops}, g.json,
				func(w io.Writer, v any) {
					m := v.(map[string]any)
					fmt.Fprintf(w, "wrote %d ops to %s\n", m["ops"], m["outfile"])
				})
			return nil
		},
	}
	cmd.Flags().StringVar(&outfile, "outfile", "", "output CSV path (required)")
	cmd.Flags().IntVar(&ops, "ops", 10000, "total number of operations")
	cmd.Flags().Float64Var(&readRatio, "read-ratio", 0.8, "share of operations that are get")
	cmd.Flags().Float64Var(&keySkew, "key-skew", 0, "Zipf exponent over the key space; 0 = uniform")
	cmd.Flags().IntVar(&keySpace, "key-space", 10000, "number of distinct keys")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "deterministic RNG seed")
	cmd.Flags().Float64Var(&adversarialRatio, "adversarial-ratio", 0, "fraction of keys from the low-bits collision family")
	cmd.Flags().IntVar(&adversarialLowBits, "adversarial-lowbits", 10, "low bits forced equal within the collision family")
	return cmd
}
