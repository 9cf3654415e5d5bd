package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"crypto-trading-agent/internal/config"

	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEngineRunning means another process already runs cycles against the
// ledger.
var ErrEngineRunning = errors.New("another engine owns the ledger")

// engineLockKey is the pg_advisory_lock key held by the engine owner.
const engineLockKey int64 = 7305961047

// AcquireEngineLock makes the caller the only process applying trades to
// the ledger: a postgres advisory lock when pool is set, a flock beside the
// ledger file otherwise. The returned func releases it.
func AcquireEngineLock(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (func(), error) {
	if pool == nil {
		return lockLedgerFile(cfg.LedgerPath + ".lock")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, engineLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("take advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrEngineRunning
	}
	return func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, engineLockKey)
		conn.Release()
	}, nil
}

func lockLedgerFile(path string) (func(), error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is locked", ErrEngineRunning, path)
	}
	return func() { _ = fl.Unlock() }, nil
}
