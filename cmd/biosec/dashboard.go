package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(insightsCmd, trendCmd, recommendCmd, riskCmd, ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Print the dashboard summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		g, err := c.Insights(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("insights: %w", err)
		}
		return printInsights(cmd.OutOrStdout(), g)
	},
}

var trendDays int

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print daily threat counts and average risk",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		points, err := c.Trend(commandContext(cmd), trendDays)
		if err != nil {
			return fmt.Errorf("trend: %w", err)
		}
		return printTrend(cmd.OutOrStdout(), points)
	},
}

func init() {
	trendCmd.Flags().IntVar(&trendDays, "days", 7, "number of days (1-90)")
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print the dashboard recommendation",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rec, err := c.Recommendation(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("recommend: %w", err)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]string{"recommendation": rec})
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec)
		return nil
	},
}

var riskCmd = &cobra.Command{
	Use:   "risk <score>",
	Short: "Classify a risk score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("score must be an integer: %w", err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		lvl, err := c.ClassifyRisk(commandContext(cmd), score)
		if err != nil {
			return fmt.Errorf("risk: %w", err)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), lvl)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", lvl.Score, lvl.Level)
		return nil
	},
}

var ledgerLimit int

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the audit ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ov, err := c.LedgerOverview(commandContext(cmd), ledgerLimit)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		return printLedger(cmd.OutOrStdout(), ov)
	},
}

func init() {
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "number of recent entries (0-200)")
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit ledger hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.VerifyLedger(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		if !res.Valid {
			return fmt.Errorf("ledger integrity check failed: %s", res.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Ledger OK")
		return nil
	},
}
