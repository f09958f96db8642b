// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/gravity/bridge"
	"github.com/luxfi/gravity/utils"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMs = 5000
	openTimeout   = 10 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS bridge_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	gravity_id    TEXT NOT NULL,
	checkpoint    TEXT NOT NULL,
	valset_nonce  TEXT NOT NULL,
	threshold_num TEXT NOT NULL,
	threshold_den TEXT NOT NULL,
	power_scale   TEXT NOT NULL,
	event_nonce   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_nonces (
	asset TEXT PRIMARY KEY,
	nonce TEXT NOT NULL
);`

var _ bridge.Store = (*SQLiteStore)(nil)

// SQLiteStore persists the state in a SQLite database. Integers are stored
// as decimal text so the full uint64 range survives.
type SQLiteStore struct {
	db  *sql.DB
	log log.Logger
}

// NewSQLiteStore opens or creates the database at path
func NewSQLiteStore(logger log.Logger, path string) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	var db *sql.DB
	open := func() error {
		// pragmas in the DSN apply to every pooled connection
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.Clean(absPath), busyTimeoutMs)
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return fmt.Errorf("ping sqlite: %w", err)
		}
		db = conn
		return nil
	}
	if err := utils.WithRetriesTimeout(logger, open, openTimeout); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("Opened state database", zap.String("path", absPath))
	return &SQLiteStore{
		db:  db,
		log: logger,
	}, nil
}

// Close releases the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Load(ctx context.Context) (*bridge.State, error) {
	var (
		gravityID, checkpoint                         string
		valsetNonce, num, den, powerScale, eventNonce string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT gravity_id, checkpoint, valset_nonce, threshold_num, threshold_den, power_scale, event_nonce
		FROM bridge_state WHERE id = 1`,
	).Scan(&gravityID, &checkpoint, &valsetNonce, &num, &den, &powerScale, &eventNonce)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bridge.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query bridge state: %w", err)
	}

	st := &bridge.State{
		GravityID:       ids.ID(common.HexToHash(gravityID)),
		Checkpoint:      common.HexToHash(checkpoint),
		LastBatchNonces: make(map[common.Address]uint64),
	}
	for _, field := range []struct {
		name  string
		value string
		dst   *uint64
	}{
		{"valset_nonce", valsetNonce, &st.ValsetNonce},
		{"threshold_num", num, &st.Threshold.Numerator},
		{"threshold_den", den, &st.Threshold.Denominator},
		{"power_scale", powerScale, &st.PowerScale},
		{"event_nonce", eventNonce, &st.LastEventNonce},
	} {
		if *field.dst, err = strconv.ParseUint(field.value, 10, 64); err != nil {
			return nil, fmt.Errorf("parse %s: %w", field.name, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT asset, nonce FROM batch_nonces`)
	if err != nil {
		return nil, fmt.Errorf("query batch nonces: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var asset, nonce string
		if err := rows.Scan(&asset, &nonce); err != nil {
			return nil, fmt.Errorf("scan batch nonce: %w", err)
		}
		n, err := strconv.ParseUint(nonce, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse batch nonce of %s: %w", asset, err)
		}
		st.LastBatchNonces[common.HexToAddress(asset)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch nonces: %w", err)
	}
	return st, nil
}

// Save replaces the stored state in a single transaction
func (s *SQLiteStore) Save(ctx context.Context, st *bridge.State) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Warn("Failed to roll back state save", zap.Error(rbErr))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bridge_state (id, gravity_id, checkpoint, valset_nonce, threshold_num, threshold_den, power_scale, event_nonce)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			gravity_id = excluded.gravity_id,
			checkpoint = excluded.checkpoint,
			valset_nonce = excluded.valset_nonce,
			threshold_num = excluded.threshold_num,
			threshold_den = excluded.threshold_den,
			power_scale = excluded.power_scale,
			event_nonce = excluded.event_nonce`,
		common.Hash(st.GravityID).Hex(),
		st.Checkpoint.Hex(),
		formatUint(st.ValsetNonce),
		formatUint(st.Threshold.Numerator),
		formatUint(st.Threshold.Denominator),
		formatUint(st.PowerScale),
		formatUint(st.LastEventNonce),
	)
	if err != nil {
		return fmt.Errorf("write bridge state: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM batch_nonces`); err != nil {
		return fmt.Errorf("clear batch nonces: %w", err)
	}
	for asset, nonce := range st.LastBatchNonces {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO batch_nonces (asset, nonce) VALUES (?, ?)`,
			asset.Hex(), formatUint(nonce),
		); err != nil {
			return fmt.Errorf("write batch nonce of %s: %w", asset, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	s.log.Debug("Saved bridge state",
		zap.Uint64("valsetNonce", st.ValsetNonce),
		zap.Uint64("eventNonce", st.LastEventNonce),
	)
	return nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
