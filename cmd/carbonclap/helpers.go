package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carbonclap/carbonclap/internal/common"
	"github.com/carbonclap/carbonclap/internal/config"
	"github.com/carbonclap/carbonclap/internal/engine"
	"github.com/carbonclap/carbonclap/internal/service"
	"github.com/carbonclap/carbonclap/internal/storage"
	"github.com/spf13/viper"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not open emissions database at %s", dbPath), err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError("could not migrate emissions database", err)
	}

	return store, nil
}

// initEngine initializes storage and wraps it in the allocation engine.
func initEngine(ctx context.Context) (*engine.Engine, service.Storage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(store), store, nil
}

// parseDate parses a YYYY-MM-DD flag value.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// parseAmount parses a positive emission amount in kg CO2e.
func parseAmount(value string) (float64, error) {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

// parsePercentages parses "id=pct,id=pct" custom allocation flags.
func parsePercentages(value string) (map[string]float64, error) {
	result := make(map[string]float64)
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid percentage %q, expected project-id=percent", pair)
		}
		pct, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentage value %q: %w", parts[1], err)
		}
		result[parts[0]] = pct
	}
	return result, nil
}
