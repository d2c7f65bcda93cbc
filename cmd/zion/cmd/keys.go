package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-zion/internal/solana"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Signer key management commands",
	Long:  `Commands for generating and inspecting admin and user signer keypairs.`,
	// Needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new keypair",
	Long: `Generate a new signer keypair and write it in the Solana CLI format.
Only the public key is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		k := solana.NewKeypair()
		if err := k.SaveToFile(out); err != nil {
			return err
		}

		fmt.Printf("Keypair written to %s\n", out)
		fmt.Printf("  Public Key: %s\n", k.PublicKey())
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show [keypair-file]",
	Short: "Print the public key of a keypair file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := solana.KeypairFromFile(args[0])
		if err != nil {
			return err
		}
		fmt.Println(k.PublicKey())
		return nil
	},
}

func init() {
	keysNewCmd.Flags().String("out", "id.json", "keypair file to write")

	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysNewCmd)
	keysCmd.AddCommand(keysShowCmd)
}
