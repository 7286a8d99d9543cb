package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pyggs",
	Short: "pyggs is a CLI for harvesting geocaching.com caches and logs.",
}

var debugHTTP *string

func init() {
	debugHTTP = rootCmd.PersistentFlags().String("debug-http", "", "Dump raw HTTP traffic to this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
