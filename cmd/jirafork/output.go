package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviderichammer/jira-fork-tool/internal/engine"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// printResult renders an operation result, as JSON when --json is set.
// Returns an error when the operation itself did not succeed so the process
// exits nonzero.
func printResult(result *engine.Result) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		if result.Success {
			fmt.Println(successStyle.Render("✓ ") + "sync " + result.SessionID + " completed")
		} else {
			fmt.Println(errorStyle.Render("✗ ") + "sync " + result.SessionID + " failed: " + result.ErrorMessage)
		}
		printCount("Issues processed", result.IssuesProcessed)
		printCount("Issues skipped", result.IssuesSkipped)
		printCount("Placeholders created", result.PlaceholdersCreated)
		printCount("Attachments transferred", result.AttachmentsTransferred)
		printCount("Comments synchronized", result.CommentsSynchronized)
		printCount("Links created", result.LinksCreated)
		printCount("Links failed", result.LinksFailed)
		printCount("Changes processed", result.ChangesProcessed)
		fmt.Printf("%s %s\n", labelStyle.Render("Duration:"), result.Duration().Round(time.Millisecond))
	}

	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.ErrorMessage)
	}
	return nil
}

func printCount(label string, n int) {
	if n == 0 {
		return
	}
	fmt.Printf("%s %d\n", labelStyle.Render(label+":"), n)
}

// printJSON renders any value as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
