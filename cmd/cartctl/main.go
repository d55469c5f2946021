// Command cartctl drives the cart engine from the command line.
//
// Usage:
//
//	cartctl replay script.yaml
//	cartctl clients [--file clients.yaml] [id]
package main

import (
	"fmt"
	"os"

	"cart-service/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "cartctl",
	Short:         "Cart engine command line tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			util.SetLogger(zap.NewNop())
			return nil
		}
		return util.InitLogger("development", "debug")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")
	rootCmd.AddCommand(replayCmd, clientsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
