package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
	"github.com/jguida941/adaptive-hashmap-studio/workload"
	"github.com/spf13/cobra"
)

// profileResult is the --json shape of the profile command's verdict.
type profileResult struct {
	OK           bool    `json:"ok"`
	RowsProfiled int     `json:"rows_profiled"`
	ChainingMs   float64 `json:"chaining_ms"`
	RobinHoodMs  float64 `json:"robinhood_ms"`
	Winner       string  `json:"winner"`
	ThenInvoked  bool    `json:"then_invoked"`
	ThenExitCode int     `json:"then_exit_code,omitempty"`
}

func newProfileCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	var (
		csvPath string
		prefix  int
		then    string
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Time a small prefix on candidate back-ends and print the winner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			guard, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			f, err := os.Open(csvPath)
			if err != nil {
				return engineerr.Wrap(engineerr.IO, err, "opening "+csvPath)
			}
			defer f.Close()

			rows, err := workload.ReadRows(f, 0, 0)
			if err != nil {
				return err
			}
			if prefix > 0 && len(rows) > prefix {
				rows = rows[:prefix]
			}

			chainingMs := timeReplay(chaining.New(chaining.Config{
				Buckets: guard.InitialBuckets, GroupsPerBucket: guard.GroupsPerBucket,
			}), rows)
			robinHoodMs := timeReplay(robinhood.New(robinhood.Config{
				InitialCapacity: guard.InitialCapacityRH,
			}), rows)

			winner := config.BackendChaining
			if robinHoodMs < chainingMs {
				winner = config.BackendRobinHood
			}

			res := profileResult{
				OK: true, RowsProfiled: len(rows),
				ChainingMs: chainingMs, RobinHoodMs: robinHoodMs, Winner: string(winner),
			}

			if then != "" {
				res.ThenInvoked = true
				winnerMode := ModeFastInsert
				if winner == config.BackendRobinHood {
					winnerMode = ModeFastLookup
				}
				thenArgs := append(strings.Fields(then), "--mode", string(winnerMode))
				res.ThenExitCode = Execute(thenArgs, stdout, stderr)
			}

			writeSuccess(stdout, res, g.json, func(w io.Writer, v any) {
				r := v.(profileResult)
				fmt.Fprintf(w, "chaining:  %.3fms\nrobinhood: %.3fms\nwinner:    %s\n", r.ChainingMs, r.RobinHoodMs, r.Winner)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "workload CSV to profile (required)")
	cmd.Flags().IntVar(&prefix, "profile-prefix", 5000, "number of leading rows to replay per candidate; 0 = all rows")
	cmd.Flags().StringVar(&then, "then", "", "chain into another command, using the winning mode")
	cmd.MarkFlagRequired("csv")
	return cmd
}

// timeReplay runs rows against a fresh engine and returns wall-clock
// elapsed time in milliseconds. It bypasses the full metrics aggregator
// since profile only needs a single wall-clock comparison, not ticks.
func timeReplay(engine workload.Engine, rows []workload.Row) float64 {
	start := time.Now()
	for _, row := range rows {
		switch row.Op {
		case "put":
			engine.Put(row.Key, row.Value)
		case "get":
			engine.Get(row.Key)
		case "del":
			engine.Delete(row.Key)
		}
	}
	return float64(time.Since(start)) / float64(time.Millisecond)
}
