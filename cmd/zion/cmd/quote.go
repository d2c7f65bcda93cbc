package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/lugondev/go-zion/internal/ledger"
	"github.com/lugondev/go-zion/internal/oracle"
	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/internal/pricing"
	"github.com/lugondev/go-zion/internal/program"
	zsolana "github.com/lugondev/go-zion/internal/solana"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
	"github.com/lugondev/go-zion/pkg/types"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote pool operations without executing them",
	Long: `Quote swaps, deposits and withdrawals.

With --pool the stored pool is quoted against its oracle feeds read over RPC.
Otherwise the pool and prices come from --reserve-a, --reserve-b, --supply,
--price-a, --price-b, --conf-a and --conf-b.`,
}

var quoteSwapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Quote a swap",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, amount, err := sideAndAmount(cmd, "in")
		if err != nil {
			return err
		}
		engine, p, prices, err := quoteInputs(cmd)
		if err != nil {
			return err
		}

		q, err := engine.Swap(p, in, amount, prices)
		if err != nil {
			return err
		}
		market, err := pricing.MarketPrice(prices, in)
		if err != nil {
			return err
		}

		fmt.Printf("Swap %d of token %s\n", amount, in)
		fmt.Printf("  Amount Out:    %d of token %s\n", q.AmountOut, in.Other())
		fmt.Printf("  Protocol Rate: %s\n", q.Price)
		fmt.Printf("  Market Rate:   %s\n", market)
		return nil
	},
}

var quoteDepositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Quote a single-token deposit",
	RunE: func(cmd *cobra.Command, args []string) error {
		side, amount, err := sideAndAmount(cmd, "token")
		if err != nil {
			return err
		}
		admin, _ := cmd.Flags().GetBool("admin")
		engine, p, prices, err := quoteInputs(cmd)
		if err != nil {
			return err
		}

		deposit := engine.DepositAtProtocol
		if admin {
			deposit = engine.DepositAtMarket
		}
		q, err := deposit(p, pricing.Single(side, amount), prices)
		if err != nil {
			return err
		}

		fmt.Printf("Deposit %d of token %s\n", amount, side)
		fmt.Printf("  Shares Out:    %d\n", q.Shares)
		fmt.Printf("  Deposit Value: %s\n", q.DepositValue)
		if !q.PoolValue.IsZero() {
			fmt.Printf("  Pool Value:    %s\n", q.PoolValue)
		}
		return nil
	},
}

var quoteWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Quote burning shares",
	RunE: func(cmd *cobra.Command, args []string) error {
		shares, _ := cmd.Flags().GetUint64("shares")
		engine, p, prices, err := quoteInputs(cmd)
		if err != nil {
			return err
		}

		q, err := engine.Withdraw(p, shares, prices)
		if err != nil {
			return err
		}

		fmt.Printf("Withdraw %d shares\n", shares)
		fmt.Printf("  Amount A Out: %d\n", q.Amounts.A)
		fmt.Printf("  Amount B Out: %d\n", q.Amounts.B)
		fmt.Printf("  Entitlement:  %s\n", q.Entitlement)
		fmt.Printf("  Payout Value: %s\n", q.PayoutValue)
		fmt.Printf("  Capped:       %t\n", q.Capped)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{quoteSwapCmd, quoteDepositCmd, quoteWithdrawCmd} {
		f := c.Flags()
		f.String("pool", "", "stored pool address; prices are read from its feeds over RPC")
		f.Uint64("reserve-a", 0, "reserve of token A")
		f.Uint64("reserve-b", 0, "reserve of token B")
		f.Uint64("supply", 0, "outstanding shares")
		f.String("price-a", "1", "price of token A")
		f.String("price-b", "1", "price of token B")
		f.String("conf-a", "0", "confidence of the token A price")
		f.String("conf-b", "0", "confidence of the token B price")
		quoteCmd.AddCommand(c)
	}

	quoteSwapCmd.Flags().String("in", "a", "token paid in (a or b)")
	quoteSwapCmd.Flags().Uint64("amount", 0, "amount paid in")
	quoteDepositCmd.Flags().String("token", "a", "token deposited (a or b)")
	quoteDepositCmd.Flags().Uint64("amount", 0, "amount deposited")
	quoteDepositCmd.Flags().Bool("admin", false, "value the deposit at market as an admin deposit")
	quoteWithdrawCmd.Flags().Uint64("shares", 0, "shares burned")

	rootCmd.AddCommand(quoteCmd)
}

func sideAndAmount(cmd *cobra.Command, sideFlag string) (types.Side, uint64, error) {
	s, _ := cmd.Flags().GetString(sideFlag)
	side, err := types.ParseSide(s)
	if err != nil {
		return 0, 0, err
	}
	amount, _ := cmd.Flags().GetUint64("amount")
	return side, amount, nil
}

// quoteInputs returns the engine, pool and prices a quote runs against.
func quoteInputs(cmd *cobra.Command) (*pricing.Engine, *pool.Pool, pricing.Prices, error) {
	engineCfg, err := program.ConfigFrom(cfg)
	if err != nil {
		return nil, nil, pricing.Prices{}, err
	}

	if address, _ := cmd.Flags().GetString("pool"); address != "" {
		return liveInputs(cmd.Context(), engineCfg, address)
	}

	f := cmd.Flags()
	p := &pool.Pool{Status: pool.StatusActive}
	p.ReserveA, _ = f.GetUint64("reserve-a")
	p.ReserveB, _ = f.GetUint64("reserve-b")
	p.ShareSupply, _ = f.GetUint64("supply")

	quote := func(priceFlag, confFlag string) (oracle.Quote, error) {
		ps, _ := f.GetString(priceFlag)
		cs, _ := f.GetString(confFlag)
		price, err := fixedpoint.Parse(ps)
		if err != nil {
			return oracle.Quote{}, fmt.Errorf("invalid --%s: %w", priceFlag, err)
		}
		conf, err := fixedpoint.Parse(cs)
		if err != nil {
			return oracle.Quote{}, fmt.Errorf("invalid --%s: %w", confFlag, err)
		}
		return oracle.Quote{Price: price, Confidence: conf}, nil
	}

	var prices pricing.Prices
	if prices.A, err = quote("price-a", "conf-a"); err != nil {
		return nil, nil, pricing.Prices{}, err
	}
	if prices.B, err = quote("price-b", "conf-b"); err != nil {
		return nil, nil, pricing.Prices{}, err
	}
	return pricing.NewEngine(engineCfg.Pricing), p, prices, nil
}

// liveInputs loads a stored pool and resolves its feeds at the current slot.
func liveInputs(ctx context.Context, engineCfg program.Config, address string) (*pricing.Engine, *pool.Pool, pricing.Prices, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, nil, pricing.Prices{}, fmt.Errorf("invalid pool address: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return nil, nil, pricing.Prices{}, err
	}
	defer closeRepo()

	m, err := repo.Pools().FindByAddress(ctx, key.String())
	if err != nil {
		return nil, nil, pricing.Prices{}, fmt.Errorf("failed to load pool %s: %w", key, err)
	}
	p, err := m.Pool()
	if err != nil {
		return nil, nil, pricing.Prices{}, err
	}

	client := zsolana.NewClient(zsolana.Config{
		Endpoint: cfg.Solana.GetRPCEndpoint(),
		Timeout:  time.Duration(cfg.Solana.Timeout) * time.Second,
	}).WithLogger(logger)
	slot, err := client.Slot(ctx)
	if err != nil {
		return nil, nil, pricing.Prices{}, err
	}

	proc := program.NewProcessor(engineCfg, client, ledger.NewMemory()).WithLogger(logger)
	prices, err := proc.Prices(ctx, p, slot)
	if err != nil {
		return nil, nil, pricing.Prices{}, err
	}
	return proc.Engine(), p, prices, nil
}
