package commands

import (
	"github.com/spf13/cobra"
	"github.com/xificurk/pyggs/lib/osutil"
	"github.com/xificurk/pyggs/lib/scrapers/geocaching"
)

func init() {
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache <guid | waypoint>",
	Short: "Fetches the full detail record of a single cache.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		details := geocaching.NewCacheDetails(createClient(cfg))

		record, err := details.Get(cmd.Context(), args[0])
		if err != nil {
			osutil.Fatal("failed to fetch cache details", err)
		}
		printJSON(record)
	},
}
