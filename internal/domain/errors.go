package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Typed errors below wrap one of these so callers can
// branch with errors.Is.
var (
	ErrInput       = errors.New("invalid input")
	ErrUnavailable = errors.New("analysis unavailable")
	ErrExecution   = errors.New("execution failed")
	ErrInvariant   = errors.New("invariant violation")
)

// Cycle stages reported in AssetError.
const (
	StageMarketData = "market_data"
	StageIndicators = "indicators"
	StageSentiment  = "sentiment"
	StagePosition   = "position"
)

// AssetError scopes a failure to one asset in one cycle.
type AssetError struct {
	Symbol  string
	CycleAt time.Time
	Stage   string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s @ %s [%s]: %v", e.Symbol, e.CycleAt.UTC().Format(time.RFC3339), e.Stage, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// ExecutionError reports an executor rejection or timeout.
type ExecutionError struct {
	Symbol string
	Action TradeAction
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s %s: %v", e.Action, e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Err} }

// InvariantError reports an attempted transition the lifecycle forbids.
type InvariantError struct {
	Symbol string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Symbol, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
