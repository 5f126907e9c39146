package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

const accountsSchema = `CREATE TABLE IF NOT EXISTS accounts (
	key        BLOB PRIMARY KEY,
	owner      BLOB NOT NULL,
	lamports   INTEGER NOT NULL,
	data       BLOB,
	checksum   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists accounts in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(accountsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save writes all accounts in one serializable transaction
func (s *SQLiteStore) Save(ctx context.Context, accounts ...*Account) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `INSERT OR REPLACE INTO accounts (key, owner, lamports, data, checksum, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().UnixNano()
	for _, acc := range accounts {
		sum := acc.checksum()
		// lamports round-trip through int64; sqlite has no unsigned column type
		_, err = tx.ExecContext(ctx, query, acc.Key[:], acc.Owner[:], int64(acc.Lamports), acc.Data, sum[:], now)
		if err != nil {
			return fmt.Errorf("failed to write account %s: %w", acc.Key, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, key core.Pubkey) (*Account, error) {
	const query = `SELECT owner, lamports, data, checksum FROM accounts WHERE key = ?`
	var (
		owner    []byte
		lamports int64
		data     []byte
		stored   []byte
	)
	err := s.db.QueryRowContext(ctx, query, key[:]).Scan(&owner, &lamports, &data, &stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, key)
		}
		return nil, fmt.Errorf("failed to read account %s: %w", key, err)
	}
	if len(owner) != core.PubkeyLen {
		return nil, fmt.Errorf("%w: owner of %s has %d bytes", apperrors.ErrInvalidAccountData, key, len(owner))
	}

	acc := &Account{Key: key, Lamports: uint64(lamports), Data: data}
	copy(acc.Owner[:], owner)

	computed := acc.checksum()
	if !bytes.Equal(stored, computed[:]) {
		return nil, fmt.Errorf("%w: checksum verification failed for %s", apperrors.ErrInvalidAccountData, key)
	}
	return acc, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
