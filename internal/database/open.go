package database

import (
	"context"
	"fmt"
)

// Open returns the store selected by driver: postgres, sqlite or memory.
// SQL stores have their schema applied before returning.
func Open(ctx context.Context, driver, url string) (Database, error) {
	switch driver {
	case "postgres", "":
		db, err := NewPostgresDB(url)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "sqlite":
		db, err := NewSQLiteDB(url)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
