package main

import (
	"context"
	"fmt"
	"strconv"

	"cartsync/internal/state"
	"cartsync/internal/types"

	"github.com/spf13/cobra"
)

// storeLoader returns a store whose r collection has been loaded.
type storeLoader func(ctx context.Context, r types.Resource) (*state.Store, error)

// cartCommands builds list/add/update/remove/clear over the store load returns.
func (c *cli) cartCommands(use, short, title string, load storeLoader) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}

	run := func(build func(args []string) (state.Command, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			var intent state.Command
			if build != nil {
				var err error
				if intent, err = build(args); err != nil {
					return err
				}
			}
			ctx, cancel := c.context()
			defer cancel()
			store, err := load(ctx, types.ResourceCart)
			if err != nil {
				return err
			}
			st := store.State()
			if intent != nil {
				if st, err = store.Dispatch(ctx, intent); err != nil {
					return err
				}
			}
			renderCart(cmd.OutOrStdout(), title, st.Cart)
			return nil
		}
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE:  run(nil),
	}

	var line types.CartLine
	var name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a product variant to the cart",
		Args:  cobra.NoArgs,
		RunE: run(func([]string) (state.Command, error) {
			l := line
			if name != "" || l.UnitPrice > 0 {
				l.Product = &types.ProductSnapshot{Name: name, Price: l.UnitPrice}
			}
			return state.AddCartItem{Line: l}, nil
		}),
	}
	add.Flags().StringVar(&line.ProductID, "product", "", "Product id")
	add.Flags().StringVar(&line.VariantID, "variant", "", "Variant id")
	add.Flags().StringVar(&line.VariantSKU, "sku", "", "Variant SKU (when no variant id)")
	add.Flags().IntVar(&line.Quantity, "qty", 1, "Quantity")
	add.Flags().Float64Var(&line.UnitPrice, "price", 0, "Unit price")
	add.Flags().StringVar(&name, "name", "", "Product name for display")

	update := &cobra.Command{
		Use:   "update <line-id> <quantity>",
		Short: "Set the quantity of a cart line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(args []string) (state.Command, error) {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return nil, fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			return state.UpdateCartItem{Target: state.LineRef{ID: args[0]}, Quantity: qty}, nil
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <line-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(args []string) (state.Command, error) {
			return state.RemoveCartItem{Target: state.LineRef{ID: args[0]}}, nil
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: run(func([]string) (state.Command, error) {
			return state.ClearCart{}, nil
		}),
	}

	cmd.AddCommand(list, add, update, remove, clearCmd)
	return cmd
}

// wishlistCommands builds list/add/remove/toggle over the store load returns.
func (c *cli) wishlistCommands(use, short, title string, load storeLoader) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}

	run := func(build func(productID string) state.Command) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context()
			defer cancel()
			store, err := load(ctx, types.ResourceWishlist)
			if err != nil {
				return err
			}
			st := store.State()
			if build != nil {
				if st, err = store.Dispatch(ctx, build(args[0])); err != nil {
					return err
				}
			}
			renderWishlist(cmd.OutOrStdout(), title, st.Wishlist)
			return nil
		}
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the wishlist",
		Args:  cobra.NoArgs,
		RunE:  run(nil),
	}
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Save a product to the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(id string) state.Command {
			return state.AddWishlist{ProductID: id}
		}),
	}
	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(id string) state.Command {
			return state.RemoveWishlist{ProductID: id}
		}),
	}
	toggle := &cobra.Command{
		Use:   "toggle <product-id>",
		Short: "Add the product if absent, remove it otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(id string) state.Command {
			return state.ToggleWishlist{ProductID: id}
		}),
	}

	cmd.AddCommand(list, add, remove, toggle)
	return cmd
}
