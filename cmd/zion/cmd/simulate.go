package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	zerrors "github.com/lugondev/go-zion/internal/errors"
	"github.com/lugondev/go-zion/internal/instruction"
	"github.com/lugondev/go-zion/internal/processor"
	"github.com/lugondev/go-zion/internal/processor/database"
	"github.com/lugondev/go-zion/internal/program"
	"github.com/lugondev/go-zion/internal/scenario"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario.yaml]",
	Short: "Replay a pool scenario",
	Long: `Replay a scripted scenario against a fresh pool with an in-memory
ledger and feed source. Pool records and receipts go to the configured
database, or to memory when the database is disabled.

The command fails when any step misses its expectations.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Bool("receipts", false, "print the receipt of each committed step")
	simulateCmd.Flags().StringSlice("persist", nil, "instruction kinds whose receipts are stored (default all)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	showReceipts, _ := cmd.Flags().GetBool("receipts")

	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	engineCfg, err := program.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	mc, stopMetrics, err := buildMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()

	persist, err := persistFilter(cmd)
	if err != nil {
		return err
	}
	receipts := database.NewBatchReceiptProcessor(repo, logger, cfg.Executor.ReceiptBatchSize)
	filtered := processor.NewConditionalProcessor[*program.Receipt](receipts, persist)
	hook := processor.NewErrorHandlingProcessor[*program.Receipt](filtered, func(err error) error {
		logger.Error("failed to persist receipts", "error", err)
		return nil
	})

	report, err := scenario.NewRunner(s, engineCfg).
		WithLogger(logger).
		WithRepository(repo).
		WithMetrics(mc).
		WithHook(hook).
		Run(ctx)
	if err != nil {
		return err
	}
	printReport(report, showReceipts)

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d steps missed their expectations", len(failed), len(report.Steps))
	}
	return nil
}

// persistFilter reports whether a receipt's kind was selected with --persist.
func persistFilter(cmd *cobra.Command) (func(*program.Receipt) bool, error) {
	names, _ := cmd.Flags().GetStringSlice("persist")
	if len(names) == 0 {
		return func(*program.Receipt) bool { return true }, nil
	}
	kinds := make(map[instruction.Kind]bool, len(names))
	for _, name := range names {
		var k instruction.Kind
		if err := k.UnmarshalText([]byte(name)); err != nil {
			return nil, fmt.Errorf("invalid --persist: %w", err)
		}
		kinds[k] = true
	}
	return func(r *program.Receipt) bool { return kinds[r.Kind] }, nil
}

func printReport(report *scenario.Report, showReceipts bool) {
	fmt.Printf("Scenario: %s\n", report.Name)
	fmt.Printf("  Pool: %s\n\n", report.Pool)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNAME\tRESULT\tIN\tOUT\tSHARES")
	for _, step := range report.Steps {
		result, in, out, shares := "ok", "-", "-", "-"
		if step.Err != nil {
			result = zerrors.Code(step.Err)
			if result == "" {
				result = "error"
			}
		}
		if r := step.Receipt; r != nil {
			in = fmt.Sprintf("%d/%d", r.AmountsIn.A, r.AmountsIn.B)
			out = fmt.Sprintf("%d/%d", r.AmountsOut.A, r.AmountsOut.B)
			switch {
			case r.SharesMinted > 0:
				shares = fmt.Sprintf("+%d", r.SharesMinted)
			case r.SharesBurned > 0:
				shares = fmt.Sprintf("-%d", r.SharesBurned)
			}
		}
		if !step.Passed() {
			result += " FAIL: " + strings.Join(step.Failures, "; ")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", step.Index, step.Name, result, in, out, shares)
	}
	_ = w.Flush()

	if p := report.Final; p != nil {
		fmt.Printf("\nFinal pool\n")
		fmt.Printf("  Status:       %s\n", p.Status)
		fmt.Printf("  Reserve A:    %d\n", p.ReserveA)
		fmt.Printf("  Reserve B:    %d\n", p.ReserveB)
		fmt.Printf("  Share Supply: %d\n", p.ShareSupply)
		fmt.Printf("  Last Slot:    %d\n", p.LastUpdateSlot)
	}

	fmt.Printf("\nHoldings\n")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICIPANT\tA\tB\tSHARES")
	for _, name := range report.Participants() {
		h := report.Holdings[name]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", name, h.A, h.B, h.Shares)
	}
	_ = w.Flush()

	if showReceipts {
		fmt.Printf("\nReceipts\n")
		for _, step := range report.Steps {
			if step.Receipt == nil {
				continue
			}
			data, err := step.Receipt.JSON()
			if err != nil {
				logger.Warn("failed to encode receipt", "id", step.Receipt.ID, "error", err)
				continue
			}
			fmt.Printf("%s\n", data)
		}
	}
}
