package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/directory"
	"github.com/chatwave/chatwave/internal/relay"
	"github.com/chatwave/chatwave/internal/server"
	"github.com/chatwave/chatwave/internal/storage"
	"github.com/chatwave/chatwave/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := sqlite.NewStore(cfg.Database)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	dir := directory.NewStoreDirectory(store, cfg.JWT, cfg.AllowGuests)
	if cfg.AdminUser != "" && cfg.AdminPassword != "" {
		if err := seedAdmin(ctx, store, dir, cfg); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}

	coord := coordinator.New(coordinator.Config{
		MaxConnections: cfg.MaxConnections,
		StrictRooms:    cfg.RoomPolicy == config.RoomPolicyStrict,
		HistoryLimit:   cfg.HistoryLimit,
	}, store, store)

	if cfg.RedisAddr != "" {
		bridge := relay.New(cfg.RedisAddr, coord.Hub())
		defer bridge.Close()
		coord.Hub().SetRelay(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("relay stopped: %v", err)
			}
		}()
	}

	app := server.NewApp(cfg, coord, dir, dir)

	log.Printf("chatwave listening tcp=%s http=%s policy=%s", cfg.ListenAddr, cfg.HTTPAddr, cfg.RoomPolicy)
	if err := app.Run(ctx); err != nil {
		log.Fatalf("server shutdown: %v", err)
	}
}

func seedAdmin(ctx context.Context, store *sqlite.Store, dir *directory.StoreDirectory, cfg config.ServerConfig) error {
	if _, err := store.GetUserByUsername(ctx, cfg.AdminUser); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return dir.Register(ctx, cfg.AdminUser, cfg.AdminPassword, coordinator.RoleAdmin)
}
