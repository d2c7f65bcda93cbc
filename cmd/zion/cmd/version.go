package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-zion/internal/pool"
	"github.com/lugondev/go-zion/pkg/fixedpoint"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the build of the Zion CLI together with the pool record and price formats it reads and writes.`,
	// Needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		version := Version
		if version == "dev" {
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
				version = info.Main.Version
			}
		}

		fmt.Printf("Zion CLI\n")
		fmt.Printf("  Version:      %s\n", version)
		fmt.Printf("  Git Commit:   %s\n", GitCommit)
		fmt.Printf("  Build Date:   %s\n", BuildDate)
		fmt.Printf("  Go:           %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Pool Record:  %d bytes\n", pool.RecordSize)
		fmt.Printf("  Price Scale:  %d decimals\n", fixedpoint.Decimals)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
