package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront-bff/internal/discovery"
)

func discoverCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find the local GraphQL endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.prober == nil {
				fmt.Printf("%s (configured)\n", appCtx.cfg.GraphQL.URL)
				return nil
			}
			var res discovery.Result
			if refresh {
				res = appCtx.prober.Refresh(cmd.Context())
			} else {
				res = appCtx.prober.Discover(cmd.Context())
			}
			switch {
			case res.Fallback:
				fmt.Printf("%s (no live backend found, using default port)\n", res.URL)
			case res.Cached:
				fmt.Printf("%s (cached)\n", res.URL)
			default:
				fmt.Println(res.URL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached port and probe again")
	return cmd
}
