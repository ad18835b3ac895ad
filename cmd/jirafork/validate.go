package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and connectivity to both instances",
	Long: `Validate checks the configuration file, then authenticates against the
source and destination instances and verifies the configured projects exist.

Examples:
  jirafork validate
  jirafork validate -c production.yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + "configuration valid")

		if err := checkInstance("source", &cfg.Source); err != nil {
			return err
		}
		if err := checkInstance("destination", &cfg.Destination); err != nil {
			return err
		}
		return nil
	},
}

func checkInstance(name string, inst *config.InstanceConfig) error {
	client := jira.NewClient(inst.URL, inst.Email, inst.APIToken)

	me, err := client.Myself(rootCtx)
	if err != nil {
		return fmt.Errorf("%s: authentication failed: %w", name, err)
	}
	fmt.Printf("%s%s authenticated as %s\n", successStyle.Render("✓ "), name, me.DisplayName)

	if inst.ProjectKey != "" {
		project, err := client.GetProject(rootCtx, inst.ProjectKey)
		if err != nil {
			return fmt.Errorf("%s: project %s: %w", name, inst.ProjectKey, err)
		}
		fmt.Printf("%s%s project %s (%s)\n", successStyle.Render("✓ "), name, project.Key, project.Name)
	}
	return nil
}
