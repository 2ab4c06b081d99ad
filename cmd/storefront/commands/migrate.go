package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// migrate: the schema is brought up to date when the store opens, so this
// reports what that did and then drops expired entries.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and purge expired entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			res := appCtx.store.OpenMigration()
			if len(res.Applied) == 0 {
				fmt.Fprintf(out, "Schema up to date (version %d).\n", res.ToVersion)
			} else {
				fmt.Fprintf(out, "Migrated %d -> %d: %s\n", res.FromVersion, res.ToVersion, strings.Join(res.Applied, ", "))
			}

			n, err := appCtx.store.Purge(cmd.Context())
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(out, "Purged %d expired entries.\n", n)
			}
			return nil
		},
	}
}
