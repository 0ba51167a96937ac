package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignite/announce/internal/app"
)

var (
	sandboxCampaign string
	sandboxLimit    int
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Inspect messages captured by the sandbox provider",
}

var sandboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured messages, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSandboxList,
}

var sandboxShowCmd = &cobra.Command{
	Use:   "show <message-id>",
	Short: "Print one captured message with its HTML body",
	Args:  cobra.ExactArgs(1),
	RunE:  runSandboxShow,
}

func init() {
	sandboxListCmd.Flags().StringVar(&sandboxCampaign, "campaign", "", "Only messages of this campaign")
	sandboxListCmd.Flags().IntVarP(&sandboxLimit, "limit", "n", 20, "Maximum number of messages")

	sandboxCmd.AddCommand(sandboxListCmd)
	sandboxCmd.AddCommand(sandboxShowCmd)
}

// openSandbox opens only the capture database; no other backend is needed.
func openSandbox() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app.App{Config: cfg}
	if _, err := a.OpenSandbox(); err != nil {
		return nil, err
	}
	return a, nil
}

func runSandboxList(cmd *cobra.Command, args []string) error {
	a, err := openSandbox()
	if err != nil {
		return err
	}
	defer a.Close()

	msgs, err := a.Sandbox.List(cmd.Context(), sandboxCampaign, sandboxLimit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("No captured messages")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCAMPAIGN\tTO\tSUBJECT\tCAPTURED")
	for _, m := range msgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.CampaignID, m.To, m.Subject, m.CapturedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runSandboxShow(cmd *cobra.Command, args []string) error {
	a, err := openSandbox()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.Sandbox.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("message %s not found", args[0])
	}
	return printJSON(m)
}
