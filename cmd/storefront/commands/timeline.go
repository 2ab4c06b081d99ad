package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storefront-bff/internal/models"
	"storefront-bff/internal/timeline"
)

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline ORDER_ID",
		Short: "Print an order's status timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := appCtx.backendContext(cmd.Context())
			if err != nil {
				return err
			}
			order, err := appCtx.backend.GetOrder(ctx, args[0])
			if err != nil {
				return err
			}
			printTimeline(os.Stdout, *order, time.Now())
			return nil
		},
	}
}

func printTimeline(w io.Writer, order models.Order, now time.Time) {
	fmt.Fprintf(w, "Order %s: %s\n", order.ID, order.Status.Label())
	for _, s := range timeline.Build(order, now) {
		mark := "[ ]"
		switch {
		case s.Current:
			mark = "[>]"
		case s.Reached:
			mark = "[x]"
		}
		at := ""
		if s.At != nil {
			at = s.At.Local().Format("15:04")
		}
		fmt.Fprintf(w, "  %s %-5s %s\n", mark, at, s.Label)
	}
}
