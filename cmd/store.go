package cmd

import (
	"context"
	"fmt"

	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/store"
	"github.com/recallapp/recall/internal/store/memory"
	"github.com/recallapp/recall/internal/store/postgres"
)

// openStore opens the configured store: PostgreSQL when DATABASE_URL is
// set, an in-memory store otherwise. The returned func releases resources.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		fmt.Println("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	st, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
	}
	fmt.Println("Using PostgreSQL backend")
	return st, func() { _ = st.Pool().Close() }, nil
}
