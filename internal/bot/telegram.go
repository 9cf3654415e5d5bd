package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/job"
	"crypto-trading-agent/internal/service"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const (
	analyzeTimeout   = 90 * time.Second
	defaultTradeRows = 10
)

var newTeleBot = tele.NewBot

type PortfolioReader interface {
	Portfolio(ctx context.Context) service.PortfolioView
	Trades(ctx context.Context) []domain.TradeRecord
}

type Analyzer interface {
	AnalyzeAsset(ctx context.Context, symbol string) (domain.AssetAnalysis, []string, error)
}

type StatusReader interface {
	Status() job.Status
}

// Bot answers read-only portfolio and analysis commands over Telegram.
type Bot struct {
	tracer    trace.Tracer
	logger    *zap.Logger
	portfolio PortfolioReader
	analyzer  Analyzer
	agent     StatusReader
	tele      *tele.Bot
	commands  map[string]command
}

type command struct {
	help  string
	reply func(ctx context.Context, args []string) string
}

// New returns nil when token is empty so callers can skip the bot.
func New(token string, tracer trace.Tracer, logger *zap.Logger, portfolio PortfolioReader) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		logger.Info("telegram token not set, skipping bot startup")
		return nil, nil
	}
	tb, err := newTeleBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Warn("telegram handler failed", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b := newBot(tracer, logger, portfolio)
	b.tele = tb
	return b, nil
}

func newBot(tracer trace.Tracer, logger *zap.Logger, portfolio PortfolioReader) *Bot {
	b := &Bot{tracer: tracer, logger: logger, portfolio: portfolio}
	b.commands = map[string]command{
		"/positions": {"open positions", b.positionsReply},
		"/trades":    {"recent trades, e.g. /trades 5", b.tradesReply},
		"/portfolio": {"cash, equity and realized PnL", b.portfolioReply},
		"/analyze":   {"analyze one asset, e.g. /analyze BTC", b.analyzeReply},
		"/status":    {"agent schedule and last cycle", b.statusReply},
	}
	return b
}

func (b *Bot) SetAnalyzer(a Analyzer)     { b.analyzer = a }
func (b *Bot) SetAgent(agent StatusReader) { b.agent = agent }

// Start registers the commands and polls until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	for name, cmd := range b.commands {
		reply := cmd.reply
		b.tele.Handle(name, func(c tele.Context) error {
			return c.Send(reply(ctx, c.Args()))
		})
	}
	b.tele.Handle("/help", func(c tele.Context) error { return c.Send(b.helpText()) })
	b.tele.Handle("/start", func(c tele.Context) error { return c.Send(b.helpText()) })

	go func() {
		<-ctx.Done()
		b.tele.Stop()
	}()
	b.logger.Info("telegram bot started")
	b.tele.Start()
}

func (b *Bot) helpText() string {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "%s - %s\n", name, b.commands[name].help)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) positionsReply(ctx context.Context, _ []string) string {
	ctx, span := b.tracer.Start(ctx, "bot.positions")
	defer span.End()

	view := b.portfolio.Portfolio(ctx)
	if len(view.Positions) == 0 {
		return "No open positions."
	}
	var sb strings.Builder
	for _, p := range view.Positions {
		fmt.Fprintf(&sb, "%s %.6f @ $%.2f\n", p.Symbol, p.Amount, p.EntryPrice)
		fmt.Fprintf(&sb, "  now $%.2f  PnL $%.2f (%+.2f%%)\n", p.CurrentPrice, p.UnrealizedPnL, p.UnrealizedPct)
		fmt.Fprintf(&sb, "  stop $%.2f  target $%.2f\n", p.StopLossPrice, p.TakeProfitPrice)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) tradesReply(ctx context.Context, args []string) string {
	ctx, span := b.tracer.Start(ctx, "bot.trades")
	defer span.End()

	n := defaultTradeRows
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return "Usage: /trades [count]"
		}
		n = v
	}
	trades := b.portfolio.Trades(ctx)
	if len(trades) == 0 {
		return "No trades yet."
	}
	if len(trades) > n {
		trades = trades[len(trades)-n:]
	}
	var sb strings.Builder
	for _, t := range trades {
		fmt.Fprintf(&sb, "#%d %s %s %s %.6f @ $%.2f = $%.2f\n",
			t.Seq, t.Timestamp.Format("01-02 15:04"), strings.ToUpper(string(t.Action)), t.Symbol, t.Amount, t.Price, t.Value)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) portfolioReply(ctx context.Context, _ []string) string {
	ctx, span := b.tracer.Start(ctx, "bot.portfolio")
	defer span.End()

	v := b.portfolio.Portfolio(ctx)
	return fmt.Sprintf(
		"Cash: $%.2f\nEquity: $%.2f (start $%.2f)\nOpen positions: %d\nTrades: %d buys, %d sells\nRealized PnL: $%.2f",
		v.Cash, v.Equity, v.StartingCash, len(v.Positions), v.Summary.Buys, v.Summary.Sells, v.Summary.RealizedPnL,
	)
}

func (b *Bot) analyzeReply(ctx context.Context, args []string) string {
	if b.analyzer == nil {
		return "Analysis is not available."
	}
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /analyze BTC\nSupported: %s", strings.Join(domain.SupportedSymbols, ", "))
	}
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if !domain.IsSupportedSymbol(symbol) {
		return fmt.Sprintf("Unknown symbol: %s\nSupported: %s", symbol, strings.Join(domain.SupportedSymbols, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	ctx, span := b.tracer.Start(ctx, "bot.analyze")
	defer span.End()

	a, warnings, err := b.analyzer.AnalyzeAsset(ctx, symbol)
	if err != nil {
		b.logger.Warn("telegram analyze failed", zap.String("symbol", symbol), zap.Error(err))
		return fmt.Sprintf("Could not analyze %s: %v", symbol, err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s $%.2f\n", a.Symbol, a.LastBar.Close)
	if a.Change24h != nil {
		fmt.Fprintf(&sb, "24h: %+.2f%%\n", *a.Change24h)
	}
	if a.Indicators.RSI != nil {
		fmt.Fprintf(&sb, "RSI: %.1f\n", *a.Indicators.RSI)
	}
	fmt.Fprintf(&sb, "Technical: %s (%.2f)\n", a.Technical.Classification, a.Technical.NetStrength)
	fmt.Fprintf(&sb, "Sentiment: %s (%.2f, %d items)\n", a.Sentiment.Classification, a.Sentiment.OverallScore, a.Sentiment.ItemCount)
	fmt.Fprintf(&sb, "Combined: %s, strength %.2f, confidence %.0f%%", a.Combined.Classification, a.Combined.Strength, a.Combined.Confidence*100)
	for _, w := range warnings {
		sb.WriteString("\n! " + w)
	}
	return sb.String()
}

func (b *Bot) statusReply(_ context.Context, _ []string) string {
	if b.agent == nil {
		return "Agent is not available."
	}
	s := b.agent.Status()
	state := "stopped"
	if s.Running {
		state = "running"
	}
	lines := []string{fmt.Sprintf("Agent %s (%s), %d cycles", state, s.Schedule, s.Cycles)}
	if s.LastCycleAt != nil {
		lines = append(lines, "Last cycle: "+s.LastCycleAt.Format(time.RFC3339))
	}
	if s.NextRunAt != nil {
		lines = append(lines, "Next run: "+s.NextRunAt.Format(time.RFC3339))
	}
	for _, e := range s.LastErrors {
		lines = append(lines, "! "+e)
	}
	return strings.Join(lines, "\n")
}
