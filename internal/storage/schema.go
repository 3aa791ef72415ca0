package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hybridserver/internal/document"
)

// Schema version tracking
const currentSchemaVersion = 1

// EnsureSchema creates the document tables when they are missing and
// records the schema version. The server itself never runs DDL; this is
// for tests and for `serve --init-db`.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		if s.driver == driverSQLite {
			// journal mode is stored in the file and cannot change inside a transaction
			if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				return fmt.Errorf("failed to set journal mode: %w", err)
			}
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := createTables(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func createTables(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	for _, t := range document.All {
		if _, err := tx.ExecContext(ctx, documentTableDDL(t)); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.Table(), err)
		}
	}

	version, err := schemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		return nil
	}
	return setSchemaVersion(ctx, tx, currentSchemaVersion)
}

// documentTableDDL uses column types both SQLite and MySQL accept.
func documentTableDDL(t document.Type) string {
	if t.HasSchemaRef() {
		return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uuid CHAR(36) NOT NULL PRIMARY KEY,
			content TEXT NOT NULL,
			xsd CHAR(36) NOT NULL
		)`, t.Table())
	}
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uuid CHAR(36) NOT NULL PRIMARY KEY,
			content TEXT NOT NULL
		)`, t.Table())
}

// schemaVersion returns 0 for a database that has never been initialized.
func schemaVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var version int
	err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}
