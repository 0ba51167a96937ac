package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/service/dispatch"
)

var (
	dispatchResend  bool
	dispatchEnqueue bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <organization-id> <campaign-id>",
	Short: "Send a campaign from this process, or enqueue it for the workers",
	Args:  cobra.ExactArgs(2),
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchResend, "resend", false, "Send again to recipients that already received the campaign")
	dispatchCmd.Flags().BoolVar(&dispatchEnqueue, "enqueue", false, "Enqueue a dispatch job instead of sending in-process")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orgID, campaignID := args[0], args[1]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if dispatchEnqueue {
		if a.Redis == nil {
			return fmt.Errorf("--enqueue needs REDIS_URL: the in-memory queue is not shared")
		}
		n, err := a.Campaigns.Send(ctx, orgID, campaignID, dispatchResend)
		if err != nil {
			return err
		}
		fmt.Printf("Queued campaign %s for %d recipients\n", campaignID, n)
		return nil
	}

	lock := a.Locks(queue.LockKey(campaignID))
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("campaign %s is already being dispatched", campaignID)
	}
	defer lock.Release(context.WithoutCancel(ctx))

	summary, err := a.Dispatch.Dispatch(ctx, orgID, campaignID, dispatch.Options{Resend: dispatchResend})
	if err != nil {
		return err
	}
	return printJSON(summary)
}
