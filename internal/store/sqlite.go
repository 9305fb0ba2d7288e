package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/verte-zerg/riotswitch/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const speedKey = "speed"

// SQLiteStore keeps accounts in a SQLite database. Row ids preserve insertion order.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the SQLite database and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", ErrPersistence, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}
	// One connection keeps in-memory databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, fmt.Errorf("%w: migrate: %v", ErrPersistence, err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			region TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// All returns the accounts in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password, region FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", ErrPersistence, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	accounts := []model.Account{}
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(&acc.Username, &acc.Password, &acc.Region); err != nil {
			return nil, fmt.Errorf("%w: scan account: %v", ErrPersistence, err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", ErrPersistence, err)
	}
	return accounts, nil
}

// Get returns the account with the exact username.
func (s *SQLiteStore) Get(ctx context.Context, username string) (model.Account, error) {
	var acc model.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, region FROM accounts WHERE username = ?`, username,
	).Scan(&acc.Username, &acc.Password, &acc.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: get account: %v", ErrPersistence, err)
	}
	return acc, nil
}

// Upsert updates an existing row in place or inserts a new one.
func (s *SQLiteStore) Upsert(ctx context.Context, username, password, region string) (bool, error) {
	if err := validateAccount(username, password, region); err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", ErrPersistence, err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			// Best-effort rollback.
			_ = rerr
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET password = ?, region = ? WHERE username = ?`,
		password, region, username)
	if err != nil {
		return false, fmt.Errorf("%w: update account: %v", ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: update account: %v", ErrPersistence, err)
	}
	isUpdate := affected > 0
	if !isUpdate {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (username, password, region) VALUES (?, ?, ?)`,
			username, password, region); err != nil {
			return false, fmt.Errorf("%w: insert account: %v", ErrPersistence, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return isUpdate, nil
}

// Delete removes the account if present.
func (s *SQLiteStore) Delete(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username)
	if err != nil {
		return false, fmt.Errorf("%w: delete account: %v", ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete account: %v", ErrPersistence, err)
	}
	return affected > 0, nil
}

// Speed returns the stored speed, or the default when unset or invalid.
func (s *SQLiteStore) Speed(ctx context.Context) (model.Speed, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, speedKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings().Speed, nil
	}
	if err != nil {
		return model.DefaultSettings().Speed, fmt.Errorf("%w: get speed: %v", ErrPersistence, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !model.Speed(n).Valid() {
		return model.DefaultSettings().Speed, nil
	}
	return model.Speed(n), nil
}

// SetSpeed stores the keystroke speed.
func (s *SQLiteStore) SetSpeed(ctx context.Context, speed model.Speed) error {
	if err := validateSpeed(speed); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		speedKey, strconv.Itoa(int(speed)))
	if err != nil {
		return fmt.Errorf("%w: set speed: %v", ErrPersistence, err)
	}
	return nil
}

// ImportDocument copies the accounts and settings of a JSON store document
// (either layout) into the database. It returns the number of accounts imported.
func (s *SQLiteStore) ImportDocument(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}
	doc, _, err := decodeDocument(data)
	if err != nil {
		return 0, fmt.Errorf("%w: decode %s: %v", ErrPersistence, path, err)
	}
	for i, acc := range doc.Accounts {
		if _, err := s.Upsert(ctx, acc.Username, acc.Password, acc.Region); err != nil {
			return i, fmt.Errorf("import %q: %w", acc.Username, err)
		}
	}
	if err := s.SetSpeed(ctx, doc.Settings.Speed); err != nil {
		return len(doc.Accounts), err
	}
	return len(doc.Accounts), nil
}
