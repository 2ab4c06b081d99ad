package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront-bff/internal/cart"
)

func cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and edit the local cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			printCart(cmd.OutOrStdout(), appCtx.carts.Get(cmd.Context(), userID))
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the cart",
			RunE: func(cmd *cobra.Command, args []string) error {
				printCart(cmd.OutOrStdout(), appCtx.carts.Get(cmd.Context(), userID))
				return nil
			},
		},
		cartAddCmd(),
		&cobra.Command{
			Use:   "set ITEM_ID QUANTITY",
			Short: "Change a line's quantity (0 removes it)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				qty, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("quantity: %w", err)
				}
				c, err := appCtx.carts.UpdateQuantity(cmd.Context(), userID, args[0], qty)
				if err != nil {
					return err
				}
				printCart(cmd.OutOrStdout(), c)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove ITEM_ID",
			Short: "Remove a line",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := appCtx.carts.RemoveItem(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				printCart(cmd.OutOrStdout(), c)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the cart",
			RunE: func(cmd *cobra.Command, args []string) error {
				return appCtx.carts.Clear(cmd.Context(), userID)
			},
		},
		cartCheckoutCmd(),
	)
	return cmd
}

func cartAddCmd() *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "add ITEM_ID",
		Short: "Add a menu item; items from another restaurant replace the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := appCtx.backendContext(cmd.Context())
			if err != nil {
				return err
			}
			c, err := appCtx.carts.AddItem(ctx, userID, args[0], qty)
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), c)
			return nil
		},
	}
	cmd.Flags().IntVarP(&qty, "quantity", "q", 1, "how many to add")
	return cmd
}

func cartCheckoutCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := appCtx.backendContext(cmd.Context())
			if err != nil {
				return err
			}
			order, err := appCtx.carts.Checkout(ctx, userID, address)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed (%s, total %.2f).\n", order.ID, order.Status.Label(), order.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "delivery address")
	return cmd
}

func printCart(w io.Writer, c *cart.Cart) {
	if c.Empty() {
		fmt.Fprintln(w, "Cart is empty.")
		return
	}
	name := c.RestaurantName
	if name == "" {
		name = c.RestaurantID
	}
	fmt.Fprintf(w, "Restaurant: %s\n", name)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tNAME\tQTY\tPRICE\tTOTAL")
	for _, l := range c.Lines() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", l.ItemID, l.Name, l.Quantity, l.Price, l.Total())
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%.2f\n", c.Count(), c.Subtotal())
	_ = tw.Flush()
}
