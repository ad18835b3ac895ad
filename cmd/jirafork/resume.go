package main

import (
	"github.com/spf13/cobra"
)

var resumeSyncID string

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted fork from its latest checkpoint",
	Long: `Resume continues a fork that was interrupted mid-transfer. The session
restarts at the last checkpointed issue; the boundary issue is reprocessed and
its mapping overwritten, so resuming never duplicates mappings.

Examples:
  jirafork resume --sync-id 4f7c9e2a-...
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer()

		return printResult(eng.Resume(rootCtx, resumeSyncID))
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeSyncID, "sync-id", "", "session id to resume")
	_ = resumeCmd.MarkFlagRequired("sync-id")
}
