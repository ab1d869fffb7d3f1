// Command cartsync manages a visitor's guest cart and wishlist on this machine and
// merges them into their account at login.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cartsync/internal/config"
	"cartsync/internal/logging"

	"github.com/spf13/cobra"
)

// cli holds global flag values and the lazily built application.
type cli struct {
	workspace  string
	configPath string
	verbose    bool
	ephemeral  bool
	timeout    time.Duration
	token      string

	cfg *config.Config
	app *app
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "cartsync",
		Short: "Guest cart and wishlist synchronizer",
		Long: `cartsync keeps an anonymous visitor's cart and wishlist on this machine and,
once they sign in, merges them into their account on the commerce backend.

Guest data lives in a local SQLite database for up to 30 days. Account data is
always read from the backend; repeated reads inside the freshness window are
served from cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default: <workspace>/.cartsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&c.ephemeral, "ephemeral", false, "Keep guest data in memory only")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(c.guestCmd())
	rootCmd.AddCommand(c.loginCmd())
	rootCmd.AddCommand(c.cartCmd())
	rootCmd.AddCommand(c.wishlistCmd())
	rootCmd.AddCommand(c.configCmd())
	return rootCmd, c
}

// execute runs rootCmd and releases the app even when the command failed.
func (c *cli) execute(rootCmd *cobra.Command) error {
	defer c.teardown()
	return rootCmd.Execute()
}

// setup loads configuration and initializes logging.
func (c *cli) setup() error {
	if c.workspace == "" {
		ws, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
		c.workspace = ws
	}
	if c.configPath == "" {
		c.configPath = config.DefaultPath(c.workspace)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.configPath, err)
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	if !filepath.IsAbs(cfg.Storage.Path) {
		cfg.Storage.Path = filepath.Join(c.workspace, cfg.Storage.Path)
	}
	c.cfg = cfg

	if err := logging.Initialize(cfg.Logging.Options()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.BootDebug("Loaded config from %s (workspace=%s)", c.configPath, c.workspace)
	return nil
}

func (c *cli) teardown() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			logging.Get(logging.CategoryCLI).Warn("Closing app: %v", err)
		}
		c.app = nil
	}
	_ = logging.Sync()
}

// application builds the app on first use so commands can adjust config first.
func (c *cli) application() (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := newApp(c.cfg, c.ephemeral)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// context returns a context bounded by --timeout and cancelled on SIGINT/SIGTERM.
func (c *cli) context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	rootCmd, c := newRootCmd()
	if err := c.execute(rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
