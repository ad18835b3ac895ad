package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var (
	forkSource string
	forkDest   string
	forkDryRun bool
	forkLimit  int
)

var forkCmd = &cobra.Command{
	Use:   "fork",
	Short: "Fork the source project into the destination instance",
	Long: `Fork copies every issue of the source project into the destination
project, in original key order. Numbering gaps are handled per the configured
gap strategy, and attachments, comments, links, and hierarchy follow the
issues.

Examples:
  jirafork fork                                # projects from config.yaml
  jirafork fork -s PROJ -d FORK                # explicit project keys
  jirafork fork --dry-run                      # report scope, write nothing
  jirafork fork --limit 50                     # trial run on the first 50 issues
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer()

		source := forkSource
		if source == "" {
			source = eng.Config.Source.ProjectKey
		}
		dest := forkDest
		if dest == "" {
			dest = eng.Config.Destination.ProjectKey
		}
		if source == "" || dest == "" {
			return fmt.Errorf("source and destination project keys are required (flags or config)")
		}

		if forkDryRun {
			report, err := eng.DryRun(rootCtx, source, dest)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(report)
			}
			fmt.Printf("%s %s -> %s\n", labelStyle.Render("Dry run:"), source, dest)
			fmt.Printf("  %d issues, %d attachments, %d comments, %d links\n",
				report.TotalIssues, report.TotalAttachments, report.TotalComments, report.TotalLinks)
			fmt.Printf("  %d numbering gaps (%d missing keys)\n", report.GapCount, report.MissingNumbers)
			for _, f := range report.UnsupportedFields {
				fmt.Println(warnStyle.Render("  unsupported field: ") + f)
			}
			printMappingPreview("issue types", report.IssueTypeMappings)
			printMappingPreview("statuses", report.StatusMappings)
			printMappingPreview("link types", report.LinkTypeMappings)
			return nil
		}

		eng.Limit = forkLimit
		return printResult(eng.Fork(rootCtx, source, dest))
	},
}

func printMappingPreview(label string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	sources := make([]string, 0, len(m))
	for src := range m {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	fmt.Printf("  %s\n", labelStyle.Render(label+":"))
	for _, src := range sources {
		fmt.Printf("    %s -> %s\n", src, m[src])
	}
}

func init() {
	forkCmd.Flags().StringVarP(&forkSource, "source-project", "s", "", "source project key")
	forkCmd.Flags().StringVarP(&forkDest, "dest-project", "d", "", "destination project key")
	forkCmd.Flags().BoolVar(&forkDryRun, "dry-run", false, "analyze and report without writing")
	forkCmd.Flags().IntVar(&forkLimit, "limit", 0, "transfer at most N issues (0 = all)")
}
