package app

import (
	"context"
	"path/filepath"
	"testing"

	"crypto-trading-agent/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireEngineLockIsExclusive(t *testing.T) {
	cfg := &config.Config{LedgerPath: filepath.Join(t.TempDir(), "data", "trades.jsonl")}

	release, err := AcquireEngineLock(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = AcquireEngineLock(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrEngineRunning)

	release()
	again, err := AcquireEngineLock(context.Background(), cfg, nil)
	require.NoError(t, err)
	again()
}
