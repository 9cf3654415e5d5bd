package paper

import (
	"context"
	"errors"
	"testing"

	"crypto-trading-agent/internal/domain"
)

func TestAccountBuyAndSell(t *testing.T) {
	acct := NewAccount(10000)
	acct.SetQuote("BTC", 50000)
	ctx := context.Background()

	fill, err := acct.Execute(ctx, "BTC", domain.ActionBuy, 0.02)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if fill.Price != 50000 || fill.Side != "buy" {
		t.Fatalf("unexpected fill %+v", fill)
	}
	snap := acct.Snapshot()
	if snap.Cash != 9000 || snap.Equity != 10000 {
		t.Fatalf("expected cash 9000 equity 10000, got %+v", snap)
	}

	acct.SetQuote("BTC", 55000)
	value, _ := acct.PortfolioValue(ctx)
	if value != 10100 {
		t.Fatalf("expected marked equity 10100, got %v", value)
	}

	if _, err := acct.Execute(ctx, "BTC", domain.ActionTakeProfit, 0.02); err != nil {
		t.Fatalf("sell: %v", err)
	}
	snap = acct.Snapshot()
	if snap.Cash != 10100 || snap.RealizedPnL != 100 || len(snap.Holdings) != 0 {
		t.Fatalf("unexpected snapshot after close %+v", snap)
	}
}

func TestAccountRejectsWithoutQuote(t *testing.T) {
	acct := NewAccount(100)
	_, err := acct.Execute(context.Background(), "ETH", domain.ActionBuy, 1)
	if !errors.Is(err, ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
}

func TestAccountRejectsOverspendAndOversell(t *testing.T) {
	acct := NewAccount(100)
	acct.SetQuote("ETH", 50)
	ctx := context.Background()

	if _, err := acct.Execute(ctx, "ETH", domain.ActionBuy, 3); !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if _, err := acct.Execute(ctx, "ETH", domain.ActionSell, 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if snap := acct.Snapshot(); snap.Cash != 100 {
		t.Fatalf("expected cash untouched, got %v", snap.Cash)
	}
}

func TestAccountReplay(t *testing.T) {
	acct := NewAccount(1000)
	err := acct.Replay([]domain.TradeRecord{
		{Symbol: "SOL", Action: domain.ActionBuy, Amount: 2, Price: 100},
		{Symbol: "SOL", Action: domain.ActionStopLoss, Amount: 2, Price: 95},
		{Symbol: "ETH", Action: domain.ActionBuy, Amount: 0.1, Price: 2000},
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	snap := acct.Snapshot()
	if snap.Cash != 790 || snap.RealizedPnL != -10 {
		t.Fatalf("unexpected replayed balances %+v", snap)
	}
	if len(snap.Holdings) != 1 || snap.Holdings[0].Symbol != "ETH" || snap.Equity != 990 {
		t.Fatalf("unexpected holdings %+v", snap)
	}
}
