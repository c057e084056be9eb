package runtime

import (
	"context"
	"fmt"
)

// Schema creates and migrates the database of a manifest.
type Schema struct {
	db *Database
}

// Schema returns the schema of the bound manifest.
func (db *Database) Schema() Schema {
	return Schema{db: db}
}

// Version is the version a freshly created database is at: one past the
// highest migration.
func (s Schema) Version() int {
	if s.db.manifest.Version == 0 {
		return 1
	}
	return s.db.manifest.Version
}

// Create executes the schema DDL in order, in one transaction.
func (s Schema) Create(ctx context.Context) error {
	return s.db.Transaction(ctx, func(ctx context.Context, _ Tx) error {
		for i, stmt := range s.db.manifest.Schema {
			if _, err := s.db.driver.Execute(ctx, nil, stmt, 0, nil); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// Migrate upgrades a database from oldVersion to newVersion. Migration N
// upgrades version N to N+1, so the migrations run are those with
// oldVersion <= N < newVersion, in order, in one transaction.
func (s Schema) Migrate(ctx context.Context, oldVersion, newVersion int) error {
	if newVersion < oldVersion {
		return fmt.Errorf("cannot migrate down from version %d to %d", oldVersion, newVersion)
	}
	return s.db.Transaction(ctx, func(ctx context.Context, _ Tx) error {
		for _, m := range s.db.manifest.Migrations {
			if m.Version < oldVersion || m.Version >= newVersion {
				continue
			}
			s.db.logger.Info("applying migration", "file", m.File, "version", m.Version)
			for i, stmt := range m.Statements {
				if _, err := s.db.driver.Execute(ctx, nil, stmt, 0, nil); err != nil {
					return fmt.Errorf("migration %s statement %d: %w", m.File, i+1, err)
				}
			}
		}
		return nil
	})
}
