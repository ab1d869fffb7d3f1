package main

import (
	"fmt"

	"cartsync/internal/coalesce"
	"cartsync/internal/config"
	"cartsync/internal/guest"
	"cartsync/internal/logging"
	"cartsync/internal/remote"
	"cartsync/internal/session"
	"cartsync/internal/state"
	"cartsync/internal/storage"
	"cartsync/internal/types"
)

// app is the wired component graph for one CLI invocation.
type app struct {
	kv            storage.KV
	guestCart     *guest.CartStore
	guestWishlist *guest.WishlistStore
	client        *remote.Client
	store         *state.Store
	sync          *session.Orchestrator
}

func newApp(cfg *config.Config, ephemeral bool) (*app, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "newApp")
	defer timer.Stop()

	kv, err := openStorage(cfg, ephemeral)
	if err != nil {
		return nil, err
	}

	gopts := guest.Options{Namespace: cfg.Guest.Namespace, Retention: cfg.GetRetention()}
	a := &app{
		kv:            kv,
		guestCart:     guest.NewCartStore(kv, gopts),
		guestWishlist: guest.NewWishlistStore(kv, gopts),
	}

	a.client, err = remote.New(remote.Config{
		BaseURL:        cfg.Remote.BaseURL,
		Timeout:        cfg.GetTimeout(),
		TokenSource:    remote.StaticToken(cfg.Remote.Token),
		MaxReadRetries: cfg.Remote.MaxReadRetries,
		RetryMin:       cfg.GetRetryMin(),
		RetryMax:       cfg.GetRetryMax(),
	})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	copts := coalesce.Options{FreshnessTTL: cfg.GetFreshnessTTL(), Cooldown: cfg.GetCooldown()}
	a.store = state.NewStore(state.Deps{
		GuestCart:     a.guestCart,
		GuestWishlist: a.guestWishlist,
		Remote:        a.client,
		CartFetch:     coalesce.New(string(types.ResourceCart), copts),
		WishlistFetch: coalesce.New(string(types.ResourceWishlist), copts),
	})

	policy, err := session.ParseMergePolicy(cfg.Session.MergePolicy)
	if err != nil {
		kv.Close()
		return nil, err
	}
	a.sync = session.New(session.Deps{
		GuestCart:     a.guestCart,
		GuestWishlist: a.guestWishlist,
		Cart:          a.client,
		Wishlist:      a.client,
		Refresher:     a.store,
		Policy:        policy,
	})

	logging.BootDebug("App ready (api=%s, policy=%s)", cfg.Remote.BaseURL, policy)
	return a, nil
}

func openStorage(cfg *config.Config, ephemeral bool) (storage.KV, error) {
	switch {
	case cfg.Storage.Disabled:
		logging.StorageWarn("Guest storage disabled by config; guest data will not persist")
		return storage.Disabled{}, nil
	case ephemeral:
		return storage.NewMemory(cfg.Storage.QuotaBytes), nil
	}
	kv, err := storage.NewSQLiteStore(cfg.Storage.Path, storage.Options{
		Driver:     cfg.Storage.Driver,
		QuotaBytes: cfg.Storage.QuotaBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open guest storage: %w", err)
	}
	return kv, nil
}

func (a *app) Close() error {
	return a.kv.Close()
}
