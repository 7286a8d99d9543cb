package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/xificurk/pyggs/lib/osutil"
	"github.com/xificurk/pyggs/lib/scrapers/geocaching"
)

var mylogsFinds *bool

func init() {
	mylogsFinds = mylogsCmd.Flags().Bool("finds", false, "Only list logs that count as finds.")
	rootCmd.AddCommand(mylogsCmd)
}

var mylogsCmd = &cobra.Command{
	Use:   "mylogs [--finds]",
	Short: "Lists the logs of the configured account in chronological order.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		mylogs := geocaching.NewMyLogs(createClient(cfg))

		var err error
		var logs []geocaching.LogItem
		if *mylogsFinds {
			logs, err = mylogs.GetFinds(cmd.Context())
		} else {
			logs, err = mylogs.Get(cmd.Context())
		}
		if err != nil {
			osutil.Fatal("failed to fetch logs", err)
		}

		slog.Info("fetched logs", "username", cfg.Username, "count", len(logs))
		printJSON(logs)
	},
}
