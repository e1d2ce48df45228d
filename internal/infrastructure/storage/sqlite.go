package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const ledgerTable = "module_tables"

// pragmas applied to every pooled connection
const dsnOptions = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// Store owns the console database and its table ownership ledger
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path
func Open(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", cleanPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// DDL from many modules is serialized through one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, now: time.Now, logger: logger}
	if err := s.ensureLedger(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Module storage opened", zap.String("path", cleanPath))
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for module data access
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ensureLedger() error {
	_, err := s.db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    table_name TEXT PRIMARY KEY,
    module_id TEXT NOT NULL,
    applied_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS %s_module ON %s (module_id);
`, ledgerTable, ledgerTable, ledgerTable))
	if err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}
	return nil
}

// Apply runs upSQL for moduleID and records it as owner of tables. Tables
// already owned by moduleID make the call idempotent.
func (s *Store) Apply(ctx context.Context, moduleID string, tables []string, upSQL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	owned := 0
	var conflicts []string
	for _, table := range tables {
		if table == ledgerTable {
			conflicts = append(conflicts, table+" (reserved)")
			continue
		}
		owner, err := ownerOf(ctx, tx, table)
		if err != nil {
			return err
		}
		switch {
		case owner == moduleID:
			owned++
		case owner != "":
			conflicts = append(conflicts, fmt.Sprintf("%s (owned by %s)", table, owner))
		default:
			exists, err := tableExists(ctx, tx, table)
			if err != nil {
				return err
			}
			if exists {
				conflicts = append(conflicts, table+" (unowned)")
			}
		}
	}
	if len(conflicts) > 0 {
		return types.NewError(types.KindSchemaConflict, moduleID, "tables already exist: %s", strings.Join(conflicts, ", "))
	}
	if owned == len(tables) {
		return nil
	}

	if strings.TrimSpace(upSQL) != "" {
		if _, err := tx.ExecContext(ctx, upSQL); err != nil {
			if IsAlreadyExistsError(err) && owned == 0 {
				return types.WrapError(types.KindSchemaConflict, moduleID, err, "schema collides with an existing object")
			}
			if !IsAlreadyExistsError(err) {
				return types.WrapError(types.KindInvalid, moduleID, err, "schema failed to apply")
			}
		}
	}

	var missing []string
	for _, table := range tables {
		exists, err := tableExists(ctx, tx, table)
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return types.NewError(types.KindInvalid, moduleID, "schema does not create declared tables: %s", strings.Join(missing, ", "))
	}

	appliedAt := s.now().UTC().UnixMilli()
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s (table_name, module_id, applied_at) VALUES (?, ?, ?)", ledgerTable),
			table, moduleID, appliedAt,
		); err != nil {
			return fmt.Errorf("record table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema of %s: %w", moduleID, err)
	}

	s.logger.Info("Module schema applied",
		zap.String("module", moduleID),
		zap.Strings("tables", tables))
	return nil
}

// Drop runs downSQL and drops every table moduleID owns among tables, then
// forgets the ownership rows. Tables owned by another module are refused.
func (s *Store) Drop(ctx context.Context, moduleID string, tables []string, downSQL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var mine []string
	for _, table := range tables {
		owner, err := ownerOf(ctx, tx, table)
		if err != nil {
			return err
		}
		switch owner {
		case moduleID:
			mine = append(mine, table)
		case "":
		default:
			return types.NewError(types.KindConflict, moduleID, "table %s is owned by %s", table, owner)
		}
	}
	if len(mine) == 0 {
		return nil
	}

	if strings.TrimSpace(downSQL) != "" {
		if _, err := tx.ExecContext(ctx, downSQL); err != nil && !isNoSuchTableError(err) {
			return fmt.Errorf("run down migration of %s: %w", moduleID, err)
		}
	}
	for _, table := range mine {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE table_name = ? AND module_id = ?", ledgerTable),
			table, moduleID,
		); err != nil {
			return fmt.Errorf("forget table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit drop of %s: %w", moduleID, err)
	}

	s.logger.Warn("Module tables dropped",
		zap.String("module", moduleID),
		zap.Strings("tables", mine))
	return nil
}

// Owners maps every ledger table to its owning module
func (s *Store) Owners(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT table_name, module_id FROM %s", ledgerTable))
	if err != nil {
		return nil, fmt.Errorf("query table owners: %w", err)
	}
	defer rows.Close()

	owners := make(map[string]string)
	for rows.Next() {
		var table, owner string
		if err := rows.Scan(&table, &owner); err != nil {
			return nil, fmt.Errorf("scan table owner: %w", err)
		}
		owners[table] = owner
	}
	return owners, rows.Err()
}

// Tables lists the tables a module owns, sorted
func (s *Store) Tables(ctx context.Context, moduleID string) ([]string, error) {
	owners, err := s.Owners(ctx)
	if err != nil {
		return nil, err
	}
	var tables []string
	for table, owner := range owners {
		if owner == moduleID {
			tables = append(tables, table)
		}
	}
	sort.Strings(tables)
	return tables, nil
}

func ownerOf(ctx context.Context, tx *sql.Tx, table string) (string, error) {
	var owner string
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT module_id FROM %s WHERE table_name = ?", ledgerTable), table,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up owner of %s: %w", table, err)
	}
	return owner, nil
}

func tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var found int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", table, err)
	}
	return true, nil
}

// IsAlreadyExistsError reports whether err is SQLite refusing to recreate an object
func IsAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isNoSuchTableError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
