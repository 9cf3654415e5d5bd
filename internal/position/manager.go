package position

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"crypto-trading-agent/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TimestampResolution is the finest time step every ledger stores. Trade
// timestamps are truncated to it so reloaded records compare equal.
const TimestampResolution = time.Microsecond

// Portfolio reports the total value used for position sizing.
type Portfolio interface {
	PortfolioValue(ctx context.Context) (float64, error)
}

// Executor fills orders. Amount is in asset units.
type Executor interface {
	Execute(ctx context.Context, symbol string, action domain.TradeAction, amount float64) (domain.Fill, error)
}

// Ledger is the append-only trade store.
type Ledger interface {
	Append(ctx context.Context, record domain.TradeRecord) error
	Load(ctx context.Context) ([]domain.TradeRecord, error)
}

type Config struct {
	MaxAllocation float64
	StopLossPct   float64
	TakeProfitPct float64
	MinConfidence float64
}

func DefaultConfig() Config {
	return Config{MaxAllocation: 0.1, StopLossPct: 0.05, TakeProfitPct: 0.1, MinConfidence: 0.6}
}

func (c Config) stopLoss(fill float64) float64   { return fill * (1 - c.StopLossPct) }
func (c Config) takeProfit(fill float64) float64 { return fill * (1 + c.TakeProfitPct) }

type ApplyInput struct {
	Symbol       string
	Signal       domain.CombinedSignal
	CurrentPrice float64
	Now          time.Time
}

// Manager owns open positions and the trade history. Apply is the only
// writer; readers get copies.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
	trades    []domain.TradeRecord
	unsaved   []domain.TradeRecord

	cfg       Config
	portfolio Portfolio
	executor  Executor
	ledger    Ledger
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewManager(tracer trace.Tracer, logger *zap.Logger, cfg Config, portfolio Portfolio, executor Executor, ledger Ledger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		positions: make(map[string]domain.Position),
		cfg:       cfg,
		portfolio: portfolio,
		executor:  executor,
		ledger:    ledger,
		tracer:    tracer,
		logger:    logger,
	}
}

// Apply evaluates one asset, first match wins: open on a confident buy,
// then stop-loss, take-profit, signal sell.
func (m *Manager) Apply(ctx context.Context, in ApplyInput) (domain.Decision, error) {
	ctx, span := m.tracer.Start(ctx, "position.apply")
	defer span.End()

	decision := domain.Decision{Symbol: in.Symbol, Action: domain.ActionNone}
	if in.Symbol == "" {
		return decision, fmt.Errorf("%w: symbol is required", domain.ErrInput)
	}
	if math.IsNaN(in.CurrentPrice) || math.IsInf(in.CurrentPrice, 0) || in.CurrentPrice <= 0 {
		return decision, fmt.Errorf("%w: invalid current price %v for %s", domain.ErrInput, in.CurrentPrice, in.Symbol)
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	in.Now = in.Now.UTC().Truncate(TimestampResolution)

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, open := m.positions[in.Symbol]
	if !open {
		if in.Signal.Classification.IsBuy() && in.Signal.Confidence > m.cfg.MinConfidence {
			return m.open(ctx, in)
		}
		return decision, nil
	}

	switch {
	case in.CurrentPrice <= pos.StopLossPrice:
		return m.close(ctx, pos, domain.ActionStopLoss, in.Now)
	case in.CurrentPrice >= pos.TakeProfitPrice:
		return m.close(ctx, pos, domain.ActionTakeProfit, in.Now)
	case in.Signal.Classification.IsSell():
		return m.close(ctx, pos, domain.ActionSell, in.Now)
	}
	p := pos
	decision.Position = &p
	return decision, nil
}

// open must be called with the write lock held.
func (m *Manager) open(ctx context.Context, in ApplyInput) (domain.Decision, error) {
	decision := domain.Decision{Symbol: in.Symbol, Action: domain.ActionNone}
	if _, exists := m.positions[in.Symbol]; exists {
		return decision, &domain.InvariantError{Symbol: in.Symbol, Reason: "position already open"}
	}

	value, err := m.portfolio.PortfolioValue(ctx)
	if err != nil {
		return decision, &domain.ExecutionError{Symbol: in.Symbol, Action: domain.ActionBuy, Err: fmt.Errorf("portfolio value: %w", err)}
	}
	notional := value * m.cfg.MaxAllocation
	if notional <= 0 || math.IsNaN(notional) {
		return decision, &domain.ExecutionError{Symbol: in.Symbol, Action: domain.ActionBuy, Err: fmt.Errorf("non-positive position size %v", notional)}
	}

	fill, err := m.executor.Execute(ctx, in.Symbol, domain.ActionBuy, notional/in.CurrentPrice)
	if err != nil {
		m.logger.Error("buy execution failed", zap.String("symbol", in.Symbol), zap.Error(err))
		return decision, &domain.ExecutionError{Symbol: in.Symbol, Action: domain.ActionBuy, Err: err}
	}
	if fill.Price <= 0 || fill.Amount <= 0 {
		return decision, &domain.ExecutionError{Symbol: in.Symbol, Action: domain.ActionBuy, Err: fmt.Errorf("invalid fill %+v", fill)}
	}

	pos := domain.Position{
		Symbol:          in.Symbol,
		EntryPrice:      fill.Price,
		Amount:          fill.Amount,
		EntryTime:       in.Now,
		StopLossPrice:   m.cfg.stopLoss(fill.Price),
		TakeProfitPrice: m.cfg.takeProfit(fill.Price),
	}
	m.positions[in.Symbol] = pos
	record := m.record(in.Symbol, domain.ActionBuy, fill, in.Now)

	m.logger.Info("position opened",
		zap.String("symbol", in.Symbol),
		zap.Float64("amount", pos.Amount),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("stop_loss", pos.StopLossPrice),
		zap.Float64("take_profit", pos.TakeProfitPrice),
	)

	decision.Action = domain.ActionBuy
	decision.Trade = &record
	decision.Position = &pos
	return decision, m.persist(ctx, record)
}

// close must be called with the write lock held.
func (m *Manager) close(ctx context.Context, pos domain.Position, action domain.TradeAction, now time.Time) (domain.Decision, error) {
	decision := domain.Decision{Symbol: pos.Symbol, Action: domain.ActionNone}
	p := pos
	decision.Position = &p

	fill, err := m.executor.Execute(ctx, pos.Symbol, action, pos.Amount)
	if err != nil {
		m.logger.Error("close execution failed", zap.String("symbol", pos.Symbol), zap.String("action", string(action)), zap.Error(err))
		return decision, &domain.ExecutionError{Symbol: pos.Symbol, Action: action, Err: err}
	}
	if fill.Price <= 0 {
		return decision, &domain.ExecutionError{Symbol: pos.Symbol, Action: action, Err: fmt.Errorf("invalid fill %+v", fill)}
	}
	if fill.Amount <= 0 {
		fill.Amount = pos.Amount
	}

	delete(m.positions, pos.Symbol)
	record := m.record(pos.Symbol, action, fill, now)

	fields := []zap.Field{
		zap.String("symbol", pos.Symbol),
		zap.String("action", string(action)),
		zap.Float64("price", fill.Price),
		zap.Float64("pnl", (fill.Price-pos.EntryPrice)*fill.Amount),
	}
	if action == domain.ActionStopLoss {
		m.logger.Warn("stop loss triggered", fields...)
	} else {
		m.logger.Info("position closed", fields...)
	}

	decision.Action = action
	decision.Trade = &record
	return decision, m.persist(ctx, record)
}

func (m *Manager) record(symbol string, action domain.TradeAction, fill domain.Fill, now time.Time) domain.TradeRecord {
	record := domain.TradeRecord{
		Seq:       int64(len(m.trades) + 1),
		Symbol:    symbol,
		Action:    action,
		Amount:    fill.Amount,
		Price:     fill.Price,
		Value:     fill.Amount * fill.Price,
		Timestamp: now,
	}
	m.trades = append(m.trades, record)
	return record
}

// persist appends record after any records an earlier append failed on,
// so the ledger never holds a close without its open.
func (m *Manager) persist(ctx context.Context, record domain.TradeRecord) error {
	if m.ledger == nil {
		return nil
	}
	m.unsaved = append(m.unsaved, record)
	for len(m.unsaved) > 0 {
		next := m.unsaved[0]
		if err := m.ledger.Append(ctx, next); err != nil {
			m.logger.Error("ledger append failed",
				zap.String("symbol", next.Symbol),
				zap.Int64("seq", next.Seq),
				zap.Int("unsaved", len(m.unsaved)),
				zap.Error(err),
			)
			return fmt.Errorf("append trade %d for %s: %w", next.Seq, next.Symbol, err)
		}
		m.unsaved = m.unsaved[1:]
	}
	return nil
}

// Unsaved reports trades held in memory that the ledger has not accepted.
func (m *Manager) Unsaved() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.unsaved)
}

// Restore replaces in-memory state by replaying ledger records: a buy opens
// a position, any other action closes it.
func (m *Manager) Restore(records []domain.TradeRecord) error {
	positions := make(map[string]domain.Position)
	for i, r := range records {
		switch {
		case r.Action == domain.ActionBuy:
			if _, ok := positions[r.Symbol]; ok {
				return &domain.InvariantError{Symbol: r.Symbol, Reason: fmt.Sprintf("record %d opens an already open position", i+1)}
			}
			positions[r.Symbol] = domain.Position{
				Symbol:          r.Symbol,
				EntryPrice:      r.Price,
				Amount:          r.Amount,
				EntryTime:       r.Timestamp,
				StopLossPrice:   m.cfg.stopLoss(r.Price),
				TakeProfitPrice: m.cfg.takeProfit(r.Price),
			}
		case r.Action.IsClose():
			delete(positions, r.Symbol)
		default:
			return fmt.Errorf("%w: record %d has unknown action %q", domain.ErrInput, i+1, r.Action)
		}
	}

	trades := make([]domain.TradeRecord, len(records))
	copy(trades, records)
	for i := range trades {
		if trades[i].Seq == 0 {
			trades[i].Seq = int64(i + 1)
		}
	}

	m.mu.Lock()
	m.positions = positions
	m.trades = trades
	m.unsaved = nil
	m.mu.Unlock()
	return nil
}

// RestoreFromLedger loads the ledger and replays it.
func (m *Manager) RestoreFromLedger(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "position.restore")
	defer span.End()

	if m.ledger == nil {
		return errors.New("no ledger configured")
	}
	records, err := m.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := m.Restore(records); err != nil {
		return err
	}
	m.logger.Info("positions restored", zap.Int("trades", len(records)), zap.Int("open", len(m.Positions())))
	return nil
}

// Positions returns open positions ordered by symbol.
func (m *Manager) Positions() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (m *Manager) Position(symbol string) (domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	return p, ok
}

// Trades returns the trade history in insertion order.
func (m *Manager) Trades() []domain.TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// Summary aggregates the trade history. Realized PnL only counts closed
// round trips.
func (m *Manager) Summary() domain.TradeSummary {
	return Summarize(m.Trades())
}

func Summarize(trades []domain.TradeRecord) domain.TradeSummary {
	var s domain.TradeSummary
	entries := make(map[string]domain.TradeRecord)
	for _, t := range trades {
		s.TotalTrades++
		switch {
		case t.Action == domain.ActionBuy:
			s.Buys++
			s.TotalBoughtUSD += t.Value
			entries[t.Symbol] = t
		case t.Action.IsClose():
			s.Sells++
			s.TotalSoldUSD += t.Value
			if entry, ok := entries[t.Symbol]; ok {
				s.RealizedPnL += (t.Price - entry.Price) * t.Amount
				delete(entries, t.Symbol)
			}
		}
	}
	return s
}
