package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/announce/internal/service/analytics"
)

var reportFormat string

var statsCmd = &cobra.Command{
	Use:   "stats <organization-id> <campaign-id>",
	Short: "Print campaign metrics, or export the full report",
	Args:  cobra.ExactArgs(2),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&reportFormat, "format", "f", "", "Export the report instead: json, csv or xlsx (xlsx is written to campaign-<id>.xlsx)")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orgID, campaignID := args[0], args[1]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if reportFormat == "" {
		header, m, err := a.Analytics.Stats(ctx, orgID, campaignID)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", header.Title, header.Status)
		fmt.Printf("  recipients  %d\n", m.Recipients)
		fmt.Printf("  delivered   %d\n", m.Delivered)
		fmt.Printf("  bounced     %d\n", m.Bounced)
		fmt.Printf("  opened      %d (%.1f%%)\n", m.Opened, m.OpenRate)
		fmt.Printf("  clicked     %d (%.1f%%)\n", m.Clicked, m.ClickRate)
		fmt.Printf("  complaints  %d\n", m.Complaints)
		return nil
	}

	rep, err := a.Analytics.Report(ctx, orgID, campaignID)
	if err != nil {
		return err
	}
	switch reportFormat {
	case "json":
		return printJSON(rep)
	case "csv":
		body, err := analytics.CSV(rep)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(body)
		return err
	case "xlsx":
		body, err := analytics.XLSX(rep)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("campaign-%s.xlsx", campaignID)
		if err := os.WriteFile(name, body, 0o644); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", name)
		return nil
	}
	return fmt.Errorf("unknown format %q", reportFormat)
}
