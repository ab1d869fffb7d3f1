package main

import (
	"context"
	"errors"

	"cartsync/internal/logging"
	"cartsync/internal/session"
	"cartsync/internal/state"
	"cartsync/internal/types"

	"github.com/spf13/cobra"
)

var errNoToken = errors.New("no access token: pass --token or set CARTSYNC_TOKEN")

func (c *cli) addTokenFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.token, "token", "", "Bearer token for the account API")
}

// authenticate applies --token and switches the store to account mode.
func (c *cli) authenticate(ctx context.Context) (*app, error) {
	if c.token != "" {
		c.cfg.Remote.Token = c.token
	}
	if c.cfg.Remote.Token == "" {
		return nil, errNoToken
	}
	a, err := c.application()
	if err != nil {
		return nil, err
	}
	if a.store.State().Authenticated {
		return a, nil
	}
	_, err = a.store.Dispatch(ctx, state.SetAuthenticated{Authenticated: true})
	return a, err
}

func (c *cli) accountStore(ctx context.Context, _ types.Resource) (*state.Store, error) {
	a, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return a.store, nil
}

func (c *cli) loginCmd() *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge the guest cart and wishlist into the account",
		Long: `login switches to the account identified by the token, replays every guest
cart line and wishlist entry into it and reloads both collections.

Entries that fail to sync stay on this device and are retried at the next login.
Sync problems are reported but never fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if policy != "" {
				c.cfg.Session.MergePolicy = policy
			}
			ctx, cancel := c.context()
			defer cancel()

			a, err := c.authenticate(ctx)
			if errors.Is(err, errNoToken) || a == nil {
				return err
			}
			if err != nil {
				logging.Get(logging.CategoryCLI).Warn("Initial account load failed: %v", err)
			}

			res := a.sync.OnLogin(ctx)
			out := cmd.OutOrStdout()
			renderSync(out, res)
			st := a.store.State()
			renderCart(out, "Account cart", st.Cart)
			renderWishlist(out, "Account wishlist", st.Wishlist)
			if res.Outcome() == session.OutcomeFailed {
				renderNotice(out, "Your guest items are still saved on this device.")
			}
			return nil
		},
	}
	c.addTokenFlag(cmd)
	cmd.Flags().StringVar(&policy, "merge-policy", "", "Override the merge policy (sum or max)")
	return cmd
}

func (c *cli) cartCmd() *cobra.Command {
	cmd := c.cartCommands("cart", "Account cart operations", "Account cart", c.accountStore)
	c.addTokenFlag(cmd)
	return cmd
}

func (c *cli) wishlistCmd() *cobra.Command {
	cmd := c.wishlistCommands("wishlist", "Account wishlist operations", "Account wishlist", c.accountStore)
	c.addTokenFlag(cmd)
	return cmd
}
