package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	syncSince string
	syncUntil string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Propagate source changes since the last completed sync",
	Long: `Sync finds source issues updated since the last completed session and
propagates them: already-forked issues are updated in place, new issues are
created and mapped. With --since/--until an explicit date range is synced
instead.

Examples:
  jirafork sync                                  # changes since last session
  jirafork sync --since 2026-08-01               # explicit range start
  jirafork sync --since 2026-08-01 --until 2026-08-15
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer()

		if syncSince == "" && syncUntil == "" {
			return printResult(eng.Incremental(rootCtx))
		}

		if syncSince == "" {
			return fmt.Errorf("--until requires --since")
		}
		since, err := parseDay(syncSince)
		if err != nil {
			return err
		}
		until := time.Now()
		if syncUntil != "" {
			if until, err = parseDay(syncUntil); err != nil {
				return err
			}
			// Make the range inclusive of the --until day.
			until = until.Add(24*time.Hour - time.Minute)
		}
		return printResult(eng.SyncDateRange(rootCtx, since, until))
	},
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func init() {
	syncCmd.Flags().StringVar(&syncSince, "since", "", "sync changes updated on or after this date (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncUntil, "until", "", "sync changes updated on or before this date (YYYY-MM-DD)")
}
