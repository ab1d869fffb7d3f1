package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cartsync/internal/state"
	"cartsync/internal/storage"
	"cartsync/internal/types"

	"github.com/spf13/cobra"
)

func (c *cli) guestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Manage the anonymous cart and wishlist kept on this machine",
	}
	cmd.AddCommand(c.guestCartCmd(), c.guestWishlistCmd(), c.guestStatusCmd())
	return cmd
}

// pather is implemented by file-backed stores.
type pather interface {
	Path() string
}

func (c *cli) guestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where guest data is kept and what is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			location := "memory"
			if p, ok := a.kv.(pather); ok {
				location = p.Path()
			}
			keys, err := a.kv.Keys(c.cfg.Guest.Namespace)
			switch {
			case errors.Is(err, storage.ErrUnavailable):
				renderNotice(out, "Guest storage is disabled; nothing is kept on this device.")
				return nil
			case err != nil:
				return fmt.Errorf("failed to list guest data: %w", err)
			}

			fmt.Fprintln(out, titleStyle.Render("Guest storage"))
			fmt.Fprintln(out, rule())
			fmt.Fprintf(out, "  location   %s\n", location)
			fmt.Fprintf(out, "  namespace  %s\n", c.cfg.Guest.Namespace)
			stored := "(none)"
			if len(keys) > 0 {
				stored = strings.Join(keys, ", ")
			}
			fmt.Fprintf(out, "  stored     %s\n", stored)
			fmt.Fprintf(out, "  cart       %d line(s), %d item(s)\n", len(a.guestCart.Get()), a.guestCart.Count())
			fmt.Fprintf(out, "  wishlist   %d product(s)\n", len(a.guestWishlist.Get()))
			return nil
		},
	}
}

// guestStore returns an anonymous store with persisted guest data loaded.
func (c *cli) guestStore(ctx context.Context, r types.Resource) (*state.Store, error) {
	a, err := c.application()
	if err != nil {
		return nil, err
	}
	if r == types.ResourceCart {
		_, err = a.store.Dispatch(ctx, state.FetchCart{})
	} else {
		_, err = a.store.Dispatch(ctx, state.FetchWishlist{})
	}
	return a.store, err
}

func (c *cli) guestCartCmd() *cobra.Command {
	return c.cartCommands("cart", "Guest cart operations", "Guest cart", c.guestStore)
}

func (c *cli) guestWishlistCmd() *cobra.Command {
	cmd := c.wishlistCommands("wishlist", "Guest wishlist operations", "Guest wishlist", c.guestStore)
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the guest wishlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			a.guestWishlist.Clear()
			renderNotice(cmd.OutOrStdout(), "Guest wishlist cleared.")
			return nil
		},
	})
	return cmd
}
