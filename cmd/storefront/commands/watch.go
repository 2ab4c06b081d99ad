package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storefront-bff/internal/models"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch ORDER_ID",
		Short: "Follow an order until it is delivered or cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctx, err := appCtx.backendContext(ctx)
			if err != nil {
				return err
			}

			errDone := errors.New("order finished")
			err = appCtx.backend.WatchOrder(ctx, args[0], func(o models.Order) error {
				printTimeline(os.Stdout, o, time.Now())
				fmt.Println()
				if o.Status.Terminal() {
					return errDone
				}
				return nil
			})
			if errors.Is(err, errDone) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
