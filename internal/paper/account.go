package paper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"crypto-trading-agent/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrNoQuote           = errors.New("no quote for symbol")
	ErrInsufficientCash  = errors.New("insufficient cash for buy")
	ErrInsufficientFunds = errors.New("insufficient position to sell")
)

var epsilon = decimal.New(1, -9)

type holding struct {
	qty     decimal.Decimal
	avgCost decimal.Decimal
}

// Account is a paper trading account. It fills market orders at the last
// quoted price and keeps cash in decimal.
type Account struct {
	mu           sync.Mutex
	startingCash decimal.Decimal
	cash         decimal.Decimal
	realizedPnL  decimal.Decimal
	holdings     map[string]holding
	quotes       map[string]decimal.Decimal
	now          func() time.Time
}

type HoldingSnapshot struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	AvgCost     float64 `json:"avg_cost"`
	Mark        float64 `json:"mark"`
	MarketValue float64 `json:"market_value"`
	Unrealized  float64 `json:"unrealized"`
}

type Snapshot struct {
	StartingCash float64           `json:"starting_cash"`
	Cash         float64           `json:"cash"`
	Equity       float64           `json:"equity"`
	RealizedPnL  float64           `json:"realized_pnl"`
	Holdings     []HoldingSnapshot `json:"holdings"`
}

func NewAccount(startingCash float64) *Account {
	cash := decimal.NewFromFloat(startingCash)
	return &Account{
		startingCash: cash,
		cash:         cash,
		holdings:     make(map[string]holding),
		quotes:       make(map[string]decimal.Decimal),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetQuote records the latest price used for fills and marking.
func (a *Account) SetQuote(symbol string, price float64) {
	if price <= 0 {
		return
	}
	a.mu.Lock()
	a.quotes[symbol] = decimal.NewFromFloat(price)
	a.mu.Unlock()
}

// Execute fills amount units of symbol at the current quote.
func (a *Account) Execute(ctx context.Context, symbol string, action domain.TradeAction, amount float64) (domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fill{}, err
	}
	if amount <= 0 {
		return domain.Fill{}, fmt.Errorf("quantity must be positive, got %v", amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	price, ok := a.quotes[symbol]
	if !ok {
		return domain.Fill{}, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
	}
	if err := a.apply(symbol, action, decimal.NewFromFloat(amount), price); err != nil {
		return domain.Fill{}, err
	}
	side := "buy"
	if action.IsClose() {
		side = "sell"
	}
	return domain.Fill{
		Symbol: symbol,
		Side:   side,
		Amount: amount,
		Price:  price.InexactFloat64(),
		Time:   a.now(),
	}, nil
}

// apply must be called with the lock held.
func (a *Account) apply(symbol string, action domain.TradeAction, qty, price decimal.Decimal) error {
	state := a.holdings[symbol]
	notional := qty.Mul(price)

	switch {
	case action == domain.ActionBuy:
		if notional.GreaterThan(a.cash.Add(epsilon)) {
			return ErrInsufficientCash
		}
		newQty := state.qty.Add(qty)
		a.cash = a.cash.Sub(notional)
		a.holdings[symbol] = holding{
			qty:     newQty,
			avgCost: state.avgCost.Mul(state.qty).Add(notional).Div(newQty),
		}
	case action.IsClose():
		if state.qty.Add(epsilon).LessThan(qty) {
			return ErrInsufficientFunds
		}
		a.realizedPnL = a.realizedPnL.Add(price.Sub(state.avgCost).Mul(qty))
		a.cash = a.cash.Add(notional)
		newQty := state.qty.Sub(qty)
		if newQty.LessThanOrEqual(epsilon) {
			delete(a.holdings, symbol)
		} else {
			a.holdings[symbol] = holding{qty: newQty, avgCost: state.avgCost}
		}
	default:
		return fmt.Errorf("unknown trade action %q", action)
	}
	return nil
}

// Replay rebuilds balances from recorded trades, e.g. after a restart.
func (a *Account) Replay(records []domain.TradeRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cash = a.startingCash
	a.realizedPnL = decimal.Zero
	a.holdings = make(map[string]holding)
	for i, r := range records {
		if err := a.apply(r.Symbol, r.Action, decimal.NewFromFloat(r.Amount), decimal.NewFromFloat(r.Price)); err != nil {
			return fmt.Errorf("replay record %d: %w", i+1, err)
		}
		if _, ok := a.quotes[r.Symbol]; !ok {
			a.quotes[r.Symbol] = decimal.NewFromFloat(r.Price)
		}
	}
	return nil
}

// PortfolioValue is cash plus holdings marked at the last quote.
func (a *Account) PortfolioValue(ctx context.Context) (float64, error) {
	return a.Snapshot().Equity, nil
}

func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	equity := a.cash
	holdings := make([]HoldingSnapshot, 0, len(a.holdings))
	for sym, h := range a.holdings {
		mark, ok := a.quotes[sym]
		if !ok {
			mark = h.avgCost
		}
		value := h.qty.Mul(mark)
		equity = equity.Add(value)
		holdings = append(holdings, HoldingSnapshot{
			Symbol:      sym,
			Qty:         h.qty.InexactFloat64(),
			AvgCost:     h.avgCost.InexactFloat64(),
			Mark:        mark.InexactFloat64(),
			MarketValue: value.InexactFloat64(),
			Unrealized:  mark.Sub(h.avgCost).Mul(h.qty).InexactFloat64(),
		})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })

	return Snapshot{
		StartingCash: a.startingCash.InexactFloat64(),
		Cash:         a.cash.InexactFloat64(),
		Equity:       equity.InexactFloat64(),
		RealizedPnL:  a.realizedPnL.InexactFloat64(),
		Holdings:     holdings,
	}
}
