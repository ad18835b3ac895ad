package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeProject string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Inspect the source project without transferring anything",
	Long: `Analyze reports the issue inventory of the source project: total
count, numbering gaps, and custom fields that cannot be carried over.

Examples:
  jirafork analyze
  jirafork analyze -p PROJ
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer()

		project := analyzeProject
		if project == "" {
			project = eng.Config.Source.ProjectKey
		}
		if project == "" {
			return fmt.Errorf("source project key is required (flag or config)")
		}

		analysis, err := eng.Analyze(rootCtx, project)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(analysis)
		}

		fmt.Printf("%s %s (%s)\n", labelStyle.Render("Project:"),
			analysis.Project.Name, analysis.Project.Key)
		fmt.Printf("%s %d\n", labelStyle.Render("Issues:"), analysis.TotalIssues)
		fmt.Printf("%s %d\n", labelStyle.Render("Numbering gaps:"), len(analysis.Gaps))
		for _, g := range analysis.Gaps {
			if g.StartNumber == g.EndNumber {
				fmt.Printf("  missing %s-%d\n", project, g.StartNumber)
			} else {
				fmt.Printf("  missing %s-%d through %s-%d\n",
					project, g.StartNumber, project, g.EndNumber)
			}
		}
		fmt.Printf("%s %d\n", labelStyle.Render("Custom fields:"), len(analysis.CustomFields))
		for _, f := range analysis.UnsupportedFields {
			fmt.Println(warnStyle.Render("  unsupported: ") + f)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeProject, "project", "p", "", "source project key")
}
