package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/lugondev/go-zion/internal/ledger"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/processor/database"
	"github.com/lugondev/go-zion/internal/program"
	zsolana "github.com/lugondev/go-zion/internal/solana"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Stored pool commands",
	Long:  `Commands for inspecting stored pools and their receipts, and for operator controls.`,
}

var poolShowCmd = &cobra.Command{
	Use:   "show [address]",
	Short: "Show a stored pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}

		repo, closeRepo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()

		m, err := repo.Pools().FindByAddress(ctx, key.String())
		if err != nil {
			return fmt.Errorf("failed to load pool %s: %w", key, err)
		}
		p, err := m.Pool()
		if err != nil {
			return err
		}

		fmt.Printf("Pool %s\n", key)
		printPool(p)
		fmt.Printf("  Updated At:   %s\n", m.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pools administered by a key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		admin, _ := cmd.Flags().GetString("admin")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		key, err := solana.PublicKeyFromBase58(admin)
		if err != nil {
			return fmt.Errorf("invalid admin: %w", err)
		}

		repo, closeRepo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()

		models, err := repo.Pools().FindByAdmin(ctx, key.String(), limit, offset)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tSTATUS\tLAST SLOT")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%d\n", m.Address, m.Status, m.LastUpdateSlot)
		}
		return w.Flush()
	},
}

var poolReceiptsCmd = &cobra.Command{
	Use:   "receipts [address]",
	Short: "List receipts of a pool, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		key, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}

		repo, closeRepo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()

		models, err := repo.Receipts().FindByPool(ctx, key.String(), limit, offset)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SLOT\tKIND\tSIGNER\tIN\tOUT\tID")
		for _, m := range models {
			r, err := database.ModelToReceipt(m)
			if err != nil {
				logger.Warn("skipping unreadable receipt", "id", m.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%d/%d\t%s\n",
				r.Slot, r.Kind, r.Signer, r.AmountsIn.A, r.AmountsIn.B, r.AmountsOut.A, r.AmountsOut.B, r.ID)
		}
		return w.Flush()
	},
}

var poolEmergencyCmd = &cobra.Command{
	Use:   "emergency [address] [on|off]",
	Short: "Enter or leave emergency mode",
	Long: `Enter or leave emergency mode on a stored pool. In emergency mode only
withdrawals and admin deposits are accepted. The signer must be the pool admin.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		var enabled bool
		switch args[1] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[1])
		}

		keypairPath, _ := cmd.Flags().GetString("keypair")
		signer, err := zsolana.KeypairFromFile(keypairPath)
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

		client := zsolana.NewClient(zsolana.Config{
			Endpoint: cfg.Solana.GetRPCEndpoint(),
			Timeout:  time.Duration(cfg.Solana.Timeout) * time.Second,
		}).WithLogger(logger)

		// Toggling status moves no tokens, so feeds and ledger are never read.
		proc := program.NewProcessor(engineCfg, oracle.NewMemorySource(), ledger.NewMemory()).WithLogger(logger)
		exec, err := program.NewExecutorBuilder(proc).
			Repository(repo).
			Clock(client).
			Metrics(mc).
			Logger(logger).
			Build()
		if err != nil {
			return err
		}
		defer func() { _ = exec.Close(ctx) }()

		p, err := exec.SetEmergency(ctx, key, signer.PublicKey(), enabled)
		if err != nil {
			return err
		}
		fmt.Printf("Pool %s is now %s\n", key, p.Status)
		return nil
	},
}

func init() {
	poolListCmd.Flags().String("admin", "", "admin public key")
	_ = poolListCmd.MarkFlagRequired("admin")
	for _, c := range []*cobra.Command{poolListCmd, poolReceiptsCmd} {
		c.Flags().Int("limit", 20, "maximum number of rows")
		c.Flags().Int("offset", 0, "rows to skip")
	}
	poolEmergencyCmd.Flags().String("keypair", "id.json", "admin keypair file")

	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolShowCmd)
	poolCmd.AddCommand(poolListCmd)
	poolCmd.AddCommand(poolReceiptsCmd)
	poolCmd.AddCommand(poolEmergencyCmd)
}

func printPool(p *pool.Pool) {
	fmt.Printf("  Status:       %s\n", p.Status)
	fmt.Printf("  Admin:        %s\n", p.Admin)
	fmt.Printf("  Share Mint:   %s\n", p.ShareMint)
	fmt.Printf("  Share Supply: %d\n", p.ShareSupply)
	for _, t := range []struct {
		name  string
		token pool.Token
		res   uint64
	}{
		{"A", p.TokenA, p.ReserveA},
		{"B", p.TokenB, p.ReserveB},
	} {
		fmt.Printf("  Token %s\n", t.name)
		fmt.Printf("    Mint:       %s\n", t.token.Mint)
		fmt.Printf("    Vault:      %s\n", t.token.Vault)
		fmt.Printf("    Oracle:     %s\n", t.token.Oracle)
		fmt.Printf("    Reserve:    %d\n", t.res)
	}
	fmt.Printf("  Last Slot:    %d\n", p.LastUpdateSlot)
}
