package core

import (
	"fmt"
	"os"

	"mealcore/internal/infra/persistence/memory"
	"mealcore/internal/infra/persistence/postgres"
	"mealcore/internal/infra/persistence/sqlite"
	"mealcore/pkg/domain"
)

// StorageDriver identifies a concrete diary store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenDiaryStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	MEALCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MEALCORE_SQLITE_PATH: path to sqlite file (default ./mealcore.db)
//	MEALCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenDiaryStore() (domain.DiaryStore, error) {
	driver := os.Getenv("MEALCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		path := os.Getenv("MEALCORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case StoragePostgres:
		dsn := os.Getenv("MEALCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
