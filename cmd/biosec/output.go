package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
	"github.com/cjmcneal02/Biosec-Project/pkg/client"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printThreat(w io.Writer, t *threat.Threat) error {
	if jsonOutput {
		return writeJSON(w, t)
	}

	fmt.Fprintf(w, "ID:          %s\n", t.ID)
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	fmt.Fprintf(w, "Source:      %s\n", t.Source)
	fmt.Fprintf(w, "Date:        %s\n", t.Date)
	fmt.Fprintf(w, "Status:      %s\n", t.Status)
	fmt.Fprintf(w, "Description: %s\n", t.Description)
	if !threat.IsAnalyzed(t) {
		fmt.Fprintf(w, "\nNot analyzed yet. Run 'biosec analyze %s'.\n", t.ID)
		return nil
	}

	l1, l2 := t.AI.Layer1, t.AI.Layer2
	fmt.Fprintf(w, "\nRisk:        %d (%s)\n", l1.Risk, threat.Classify(l1.Risk))
	fmt.Fprintf(w, "Category:    %s\n", l1.Category)
	fmt.Fprintf(w, "Confidence:  %.0f%%\n", l1.Confidence*100)
	fmt.Fprintf(w, "Summary:     %s\n", l1.Summary)
	fmt.Fprintf(w, "\nPriority:    %s\n", l2.Priority)
	fmt.Fprintf(w, "Impact:      %s\n", l2.EstimatedImpact)
	fmt.Fprintln(w, "Mitigations:")
	for i, m := range l2.Mitigations {
		fmt.Fprintf(w, "  %d. %s\n", i+1, m)
	}
	if len(l2.RecommendedActions) > 0 {
		fmt.Fprintln(w, "Recommended actions:")
		for _, a := range l2.RecommendedActions {
			fmt.Fprintf(w, "  - %s\n", a)
		}
	}
	if l3 := t.AI.Layer3; l3 != nil {
		fmt.Fprintf(w, "\nContext:     %s\n", l3.ContextualInsights)
		if len(l3.RelatedThreats) > 0 {
			fmt.Fprintf(w, "Related:     %s\n", strings.Join(l3.RelatedThreats, ", "))
		}
	}
	return nil
}

func printThreatTable(w io.Writer, threats []*threat.Threat) error {
	if jsonOutput {
		return writeJSON(w, threats)
	}
	if len(threats) == 0 {
		fmt.Fprintln(w, "No threats.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRISK\tLEVEL\tCATEGORY\tDATE\tTITLE")
	for _, t := range threats {
		risk, level, cat := "-", "-", "-"
		if threat.IsAnalyzed(t) {
			risk = fmt.Sprint(t.Risk())
			level = string(threat.Classify(t.Risk()))
			c, _ := t.Category()
			cat = string(c)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, risk, level, cat, t.Date, t.Title)
	}
	return tw.Flush()
}

func printInsights(w io.Writer, g *insights.GlobalInsights) error {
	if jsonOutput {
		return writeJSON(w, g)
	}
	fmt.Fprintf(w, "Total threats:  %d\n", g.TotalThreats)
	fmt.Fprintf(w, "Average risk:   %d\n", g.AvgRisk)
	fmt.Fprintf(w, "Top category:   %s\n", g.TopCategory)
	fmt.Fprintf(w, "Pattern:        %s\n", g.TrendingPattern)
	d := g.RiskDistribution
	fmt.Fprintf(w, "Distribution:   low %d, medium %d, high %d, critical %d\n", d.Low, d.Medium, d.High, d.Critical)
	a := g.RecentActivity
	fmt.Fprintf(w, "Recent:         %d in 24h, %d in 7d, %d in 30d\n", a.Last24h, a.Last7d, a.Last30d)
	return nil
}

func printTrend(w io.Writer, points []insights.TrendPoint) error {
	if jsonOutput {
		return writeJSON(w, points)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTHREATS\tAVG RISK")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Date, p.Threats, p.AvgRisk)
	}
	return tw.Flush()
}

func printLedger(w io.Writer, ov *client.LedgerOverview) error {
	if jsonOutput {
		return writeJSON(w, ov)
	}
	fmt.Fprintf(w, "Entries: %d\nRoot:    %s\n\n", ov.Entries, ov.Root)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tTIME\tACTION\tTHREAT\tHASH")
	for _, e := range ov.Recent {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.12s\n", e.Index, e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.ThreatID, e.Hash)
	}
	return tw.Flush()
}
