package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/xificurk/pyggs/lib/osutil"
	"github.com/xificurk/pyggs/lib/scrapers/geocaching"
)

var (
	seekLat   *float64
	seekLon   *float64
	seekDist  *int
	seekUser  *string
	seekOwner *string
	seekOCR   *bool
	seekLimit *int
)

func init() {
	seekLat = seekCmd.Flags().Float64("lat", 0, "Latitude of the search origin in decimal degrees.")
	seekLon = seekCmd.Flags().Float64("lon", 0, "Longitude of the search origin in decimal degrees.")
	seekDist = seekCmd.Flags().Int("dist", 10, "Search radius in kilometers.")
	seekUser = seekCmd.Flags().String("user", "", "Search for caches found by this user instead of by coordinates.")
	seekOwner = seekCmd.Flags().String("owner", "", "Search for caches owned by this user instead of by coordinates.")
	seekOCR = seekCmd.Flags().Bool("ocr", false, "Recognize distance, direction, difficulty, terrain and size from result images.")
	seekLimit = seekCmd.Flags().Int("limit", 0, "Stop after this many results (0 means all).")
	rootCmd.AddCommand(seekCmd)
}

var seekCmd = &cobra.Command{
	Use:   "seek [--lat <deg> --lon <deg> --dist <km> | --user <name> | --owner <name>] [--ocr] [--limit <n>]",
	Short: "Searches for caches near a point or tied to a user.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := createClient(cfg)

		var seek *geocaching.Seek
		if *seekOCR {
			seek = geocaching.NewSeekOCR(client, loadDictionary(cfg))
		} else {
			seek = geocaching.NewSeek(client)
		}

		ctx := cmd.Context()
		var result *geocaching.SeekResult
		var err error
		switch {
		case *seekUser != "":
			result, err = seek.User(ctx, *seekUser)
		case *seekOwner != "":
			result, err = seek.Owner(ctx, *seekOwner)
		default:
			result, err = seek.Coord(ctx, *seekLat, *seekLon, *seekDist)
		}
		if err != nil {
			osutil.Fatal("failed to run seek query", err)
		}

		slog.Info("seek matched caches", "total", result.Len())

		limit := result.Len()
		if *seekLimit > 0 && *seekLimit < limit {
			limit = *seekLimit
		}
		rows := make([]geocaching.Record, 0, limit)
		for len(rows) < limit {
			row, ok, err := result.Next(ctx)
			if err != nil {
				osutil.Fatal("failed to load seek page", err)
			}
			if !ok {
				break
			}
			rows = append(rows, row)
		}
		printJSON(rows)
	},
}
