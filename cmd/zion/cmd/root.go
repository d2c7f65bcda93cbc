package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-zion/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zion",
	Short: "Zion - oracle-priced liquidity pool engine",
	Long: `Zion runs a two-token liquidity pool priced by external oracle feeds
instead of a bonding curve.

It provides commands for:
- Replaying pool scenarios against an in-memory ledger
- Quoting swaps, deposits and withdrawals
- Inspecting stored pools and receipts
- Managing the database schema and signer keys`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}

		cfg = loaded
		logger = cfg.Log.NewLogger()
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.zion.yaml or $HOME/.zion.yaml)")
	rootCmd.PersistentFlags().String("rpc", "", "Solana RPC endpoint (overrides solana.rpc)")
	rootCmd.PersistentFlags().String("network", "", "Solana network (mainnet, devnet, testnet, localnet)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text or json)")
}

// applyFlagOverrides copies explicitly set persistent flags over loaded values.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("rpc", &c.Solana.RPC)
	override("network", &c.Solana.Network)
	override("log-level", &c.Log.Level)
	override("log-format", &c.Log.Format)
	if flags.Changed("network") && !flags.Changed("rpc") {
		c.Solana.RPC = ""
	}
}
