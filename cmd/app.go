package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/apns-notifyd/internal/config"
	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

// loadConfig reads and validates configuration, honoring --config.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// stores groups the registry store and, for SQLite, the delivery log that
// shares its database.
type stores struct {
	kv         storage.KVStore
	deliveries storage.DeliveryStore // nil unless the sqlite backend is used
}

func (s *stores) Close(logger *slog.Logger) {
	if err := s.kv.Close(); err != nil {
		logger.Warn("failed to close registry store", "error", err)
	}
}

// openStores opens the backend selected by cfg.Store.
func openStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	switch cfg.Store {
	case config.StoreDynamoDB:
		kv, err := storage.OpenDynamoDBKVStore(ctx, cfg.DynamoDBTable, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, fmt.Errorf("opening DynamoDB registry: %w", err)
		}
		return &stores{kv: kv}, nil
	default:
		kv, err := storage.OpenSQLiteKVStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening registry database %q: %w", cfg.DBPath, err)
		}
		return &stores{kv: kv, deliveries: storage.NewSQLiteDeliveryStore(kv.DB())}, nil
	}
}
