package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
	"github.com/cjmcneal02/Biosec-Project/pkg/client"
)

func init() {
	rootCmd.AddCommand(submitCmd, listCmd, showCmd, analyzeCmd, refreshCmd, stepsCmd,
		deleteCmd, generateCmd, sampleCmd, clearCmd)
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitTitle       string
	submitDescription string
	submitDate        string
	submitSource      string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a threat report for analysis",
	Long: `Submit sends a new report; the server runs all three analysis layers and
prints the analyzed threat.

  biosec submit --title "Unauthorized PCR protocol change" \
      --description "Cycling parameters modified outside change control" \
      --source "Lab Manager"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date := submitDate
		if date == "" {
			date = time.Now().Format(time.DateOnly)
		}
		in := threat.Input{Title: submitTitle, Description: submitDescription, Date: date, Source: submitSource}
		if err := in.Validate(); err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		t, err := c.SubmitThreat(commandContext(cmd), in)
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		return printThreat(cmd.OutOrStdout(), t)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "threat title (required)")
	submitCmd.Flags().StringVar(&submitDescription, "description", "", "threat description (required)")
	submitCmd.Flags().StringVar(&submitDate, "date", "", "observation date YYYY-MM-DD (default today)")
	submitCmd.Flags().StringVar(&submitSource, "source", "", "reporting source (required)")
	_ = submitCmd.MarkFlagRequired("title")
	_ = submitCmd.MarkFlagRequired("description")
	_ = submitCmd.MarkFlagRequired("source")
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listCategory string
	listSort     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List threats, newest first or by risk",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		threats, err := c.ListThreats(commandContext(cmd), client.ListOptions{
			Category: threat.Category(listCategory),
			Sort:     listSort,
		})
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		return printThreatTable(cmd.OutOrStdout(), threats)
	},
}

func init() {
	listCmd.Flags().StringVar(&listCategory, "category", "", "only threats of this category")
	listCmd.Flags().StringVar(&listSort, "sort", "date", "order: date or risk")
}

// ── single-threat commands ───────────────────────────────────────────────────

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one threat with its analysis",
	Args:  cobra.ExactArgs(1),
	RunE: threatAction(func(c *client.Client, cmd *cobra.Command, id string) (*threat.Threat, error) {
		return c.GetThreat(commandContext(cmd), id)
	}),
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <id>",
	Short: "Analyze a generated (unanalyzed) threat",
	Args:  cobra.ExactArgs(1),
	RunE: threatAction(func(c *client.Client, cmd *cobra.Command, id string) (*threat.Threat, error) {
		return c.AnalyzeThreat(commandContext(cmd), id)
	}),
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <id>",
	Short: "Re-run every analysis layer on an analyzed threat",
	Args:  cobra.ExactArgs(1),
	RunE: threatAction(func(c *client.Client, cmd *cobra.Command, id string) (*threat.Threat, error) {
		return c.RefreshThreat(commandContext(cmd), id)
	}),
}

var stepsCmd = &cobra.Command{
	Use:   "steps <id>",
	Short: "Regenerate the mitigation steps of an analyzed threat",
	Args:  cobra.ExactArgs(1),
	RunE: threatAction(func(c *client.Client, cmd *cobra.Command, id string) (*threat.Threat, error) {
		return c.GenerateSteps(commandContext(cmd), id)
	}),
}

func threatAction(fn func(*client.Client, *cobra.Command, string) (*threat.Threat, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		t, err := fn(c, cmd, args[0])
		switch {
		case client.IsNotFound(err):
			return fmt.Errorf("threat %q not found", args[0])
		case err != nil:
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		return printThreat(cmd.OutOrStdout(), t)
	}
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a threat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeleteThreat(commandContext(cmd), args[0]); err != nil {
			if client.IsNotFound(err) {
				return fmt.Errorf("threat %q not found", args[0])
			}
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

// ── bulk commands ────────────────────────────────────────────────────────────

var (
	generateCount   int
	generateReplace bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate unanalyzed threats for testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateCount < 1 || generateCount > 100 {
			return errors.New("--count must be between 1 and 100")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		threats, err := c.GenerateThreats(commandContext(cmd), generateCount, generateReplace)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		return printThreatTable(cmd.OutOrStdout(), threats)
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateCount, "count", 25, "number of threats (1-100)")
	generateCmd.Flags().BoolVar(&generateReplace, "replace", false, "discard the existing collection first")
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Replace the collection with the built-in sample threats",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		threats, err := c.LoadSampleData(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("sample: %w", err)
		}
		return printThreatTable(cmd.OutOrStdout(), threats)
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every threat",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return errors.New("refusing to clear without --yes")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.ClearThreats(commandContext(cmd)); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared all threats")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion of all threats")
}
