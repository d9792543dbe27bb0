package cli

import (
	"fmt"
	"io"

	"github.com/jguida941/adaptive-hashmap-studio/snapshot"
	"github.com/spf13/cobra"
)

func newVerifySnapshotCmd(g *globals, stdout io.Writer) *cobra.Command {
	var (
		in      string
		repair  bool
		out     string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "verify-snapshot",
		Short: "Validate a snapshot's framing, checksum, and back-end invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := snapshot.Verify(in, repair, out, snapshot.WriteOptions{Compress: true})
			if err != nil {
				return err
			}
			writeSuccess(stdout, res, g.json, func(w io.Writer, v any) {
				r := v.(snapshot.VerifyResult)
				fmt.Fprintf(w, "ok: kind=%s size=%d repaired=%v\n", r.Kind, r.Size, r.Repaired)
				if verbose {
					fmt.Fprintf(w, "  in=%s\n", in)
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "snapshot to verify (required)")
	cmd.Flags().BoolVar(&repair, "repair", false, "compact and rewrite a RobinHood snapshot that verifies cleanly")
	cmd.Flags().StringVar(&out, "out", "", "repaired snapshot output path; defaults to --in")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print extra diagnostics")
	cmd.MarkFlagRequired("in")
	return cmd
}

func newCompactSnapshotCmd(g *globals, stdout io.Writer) *cobra.Command {
	var (
		in       string
		out      string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "compact-snapshot",
		Short: "Apply offline tombstone compaction to a RobinHood snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := snapshot.Compact(in, out, snapshot.WriteOptions{Compress: compress})
			if err != nil {
				return err
			}
			writeSuccess(stdout, map[string]any{"ok": true, "size": size, "out": out}, g.json,
				func(w io.Writer, v any) {
					m := v.(map[string]any)
					fmt.Fprintf(w, "compacted: size=%d out=%s\n", m["size"], m["out"])
				})
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "RobinHood snapshot to compact (required)")
	cmd.Flags().StringVar(&out, "out", "", "compacted snapshot output path (required)")
	cmd.Flags().BoolVar(&compress, "compress", false, "gzip-frame the output snapshot")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")
	return cmd
}
