package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/cart"
	"storefront-bff/internal/config"
	"storefront-bff/internal/discovery"
	"storefront-bff/internal/graphql"
	"storefront-bff/internal/services"
	"storefront-bff/internal/storage"
)

var (
	dbPath     string
	cfgPath    string
	graphqlURL string
	userID     string
	passphrase string
	verbose    bool

	appCtx *app
)

// app is the dependency graph shared by subcommands.
type app struct {
	cfg     *config.Config
	store   *storage.SQLite
	prober  *discovery.Prober
	locator graphql.EndpointResolver
	backend *services.ServiceClient
	carts   *cart.Service
	vault   *auth.Vault
}

func Execute() error {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Developer CLI for the storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			if dbPath == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				dbPath = filepath.Join(dir, ".storefront", "state.db")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			appCtx = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.store.Close()
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "", "state database (default ~/.storefront/state.db)")
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("BFF_CONFIG"), "YAML config file")
	root.PersistentFlags().StringVar(&graphqlURL, "graphql", "", "GraphQL endpoint; skips port discovery")
	root.PersistentFlags().StringVarP(&userID, "user", "u", "local", "user the cart belongs to")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the saved token")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		migrateCmd(),
		discoverCmd(),
		tokenCmd(),
		cartCmd(),
		timelineCmd(),
		watchCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if graphqlURL != "" {
		cfg.GraphQL.URL = graphqlURL
	}

	store, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store, vault: auth.NewVault(store)}
	if cfg.GraphQL.URL != "" {
		a.locator = discovery.Static(cfg.GraphQL.URL)
	} else {
		a.prober = discovery.New(discovery.Options{
			Host:        cfg.GraphQL.Host,
			Path:        cfg.GraphQL.Path,
			Ports:       cfg.GraphQL.Ports,
			DefaultPort: cfg.GraphQL.DefaultPort,
			Timeout:     cfg.GraphQL.ProbeTimeout,
			Cache:       store,
		})
		a.locator = a.prober
	}

	gql := graphql.NewClient(a.locator, &http.Client{Timeout: 15 * time.Second})
	a.backend = services.NewServiceClient(cfg, gql)
	a.carts = cart.NewService(store, cfg.CartTTL, a.backend, a.backend)
	return a, nil
}

// backendContext attaches the saved token when a passphrase was given.
func (a *app) backendContext(ctx context.Context) (context.Context, error) {
	if passphrase == "" {
		return ctx, nil
	}
	tok, err := a.vault.Load(ctx, passphrase)
	if errors.Is(err, storage.ErrNotFound) {
		return ctx, nil
	}
	if err != nil {
		return ctx, err
	}
	return graphql.WithToken(ctx, tok), nil
}
