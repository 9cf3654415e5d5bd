package domain

import "time"

// Classification is the five-level directional label shared by technical
// and combined signals.
type Classification string

const (
	StrongBuy  Classification = "strong_buy"
	Buy        Classification = "buy"
	Neutral    Classification = "neutral"
	Sell       Classification = "sell"
	StrongSell Classification = "strong_sell"
)

// IsBuy reports whether c is buy or strong_buy.
func (c Classification) IsBuy() bool { return c == Buy || c == StrongBuy }

// IsSell reports whether c is sell or strong_sell.
func (c Classification) IsSell() bool { return c == Sell || c == StrongSell }

// Magnitude maps a classification to its fixed fusion magnitude.
func (c Classification) Magnitude() float64 {
	switch c {
	case StrongBuy:
		return 100
	case Buy:
		return 50
	case Sell:
		return -50
	case StrongSell:
		return -100
	default:
		return 0
	}
}

// ClassifyStrength applies the directional thresholds: above 50 strong_buy,
// above 20 buy, below -50 strong_sell, below -20 sell, otherwise neutral.
func ClassifyStrength(v float64) Classification {
	switch {
	case v > 50:
		return StrongBuy
	case v > 20:
		return Buy
	case v < -50:
		return StrongSell
	case v < -20:
		return Sell
	default:
		return Neutral
	}
}

type SentimentClass string

const (
	SentimentPositive SentimentClass = "positive"
	SentimentNeutral  SentimentClass = "neutral"
	SentimentNegative SentimentClass = "negative"
)

// IsDirectional reports whether s is positive or negative.
func (s SentimentClass) IsDirectional() bool {
	return s == SentimentPositive || s == SentimentNegative
}

type SignalReason struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"`
}

type TechnicalSignal struct {
	BuyReasons     []SignalReason `json:"buy_reasons"`
	SellReasons    []SignalReason `json:"sell_reasons"`
	NetStrength    float64        `json:"net_strength"`
	Classification Classification `json:"classification"`
	AsOf           time.Time      `json:"as_of"`
}

type SentimentItem struct {
	Text            string    `json:"text"`
	RawPolarity     float64   `json:"raw_polarity"`
	EngagementCount int       `json:"engagement_count"`
	FollowerCount   int       `json:"follower_count"`
	IsAuthority     bool      `json:"is_authority"`
	Source          string    `json:"source,omitempty"`
	Author          string    `json:"author,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitempty"`
}

type SentimentSignal struct {
	OverallScore            float64         `json:"overall_score"`
	Classification          SentimentClass  `json:"classification"`
	AuthorityScore          float64         `json:"authority_score"`
	AuthorityClassification SentimentClass  `json:"authority_classification"`
	ItemCount               int             `json:"item_count"`
	PositiveCount           int             `json:"positive_count"`
	NegativeCount           int             `json:"negative_count"`
	NeutralCount            int             `json:"neutral_count"`
	PositivePct             float64         `json:"positive_pct"`
	NegativePct             float64         `json:"negative_pct"`
	NeutralPct              float64         `json:"neutral_pct"`
	TopItems                []SentimentItem `json:"top_items,omitempty"`
}

// Factor sources.
const (
	FactorTechnical = "technical"
	FactorSentiment = "sentiment"
)

type ContributingFactor struct {
	Source         string  `json:"source"`
	Classification string  `json:"classification"`
	Score          float64 `json:"score"`
	Contribution   float64 `json:"contribution"`
}

type CombinedSignal struct {
	Strength       float64              `json:"strength"`
	Classification Classification       `json:"classification"`
	Confidence     float64              `json:"confidence"`
	Factors        []ContributingFactor `json:"factors"`
}

type Position struct {
	Symbol          string    `json:"symbol"`
	EntryPrice      float64   `json:"entry_price"`
	Amount          float64   `json:"amount"`
	EntryTime       time.Time `json:"entry_time"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
}

type TradeAction string

const (
	ActionNone       TradeAction = "none"
	ActionBuy        TradeAction = "buy"
	ActionSell       TradeAction = "sell"
	ActionStopLoss   TradeAction = "stop_loss"
	ActionTakeProfit TradeAction = "take_profit"
)

// IsClose reports whether a closes an open position.
func (a TradeAction) IsClose() bool {
	return a == ActionSell || a == ActionStopLoss || a == ActionTakeProfit
}

// TradeRecord is one append-only ledger entry.
type TradeRecord struct {
	Seq       int64       `json:"seq,omitempty"`
	Symbol    string      `json:"symbol"`
	Action    TradeAction `json:"action"`
	Amount    float64     `json:"amount"`
	Price     float64     `json:"price"`
	Value     float64     `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// Fill is what an executor reports for a completed order.
type Fill struct {
	Symbol string    `json:"symbol"`
	Side   string    `json:"side"`
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Decision is the outcome of applying a combined signal to one asset.
type Decision struct {
	Symbol   string       `json:"symbol"`
	Action   TradeAction  `json:"action"`
	Trade    *TradeRecord `json:"trade,omitempty"`
	Position *Position    `json:"position,omitempty"`
}

// IndicatorSnapshot holds the latest indicator values; nil marks undefined.
type IndicatorSnapshot struct {
	SMAShort   *float64 `json:"sma_short"`
	SMALong    *float64 `json:"sma_long"`
	EMAShort   *float64 `json:"ema_short"`
	EMALong    *float64 `json:"ema_long"`
	RSI        *float64 `json:"rsi"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	MACDHist   *float64 `json:"macd_hist"`
	BBUpper    *float64 `json:"bb_upper"`
	BBMiddle   *float64 `json:"bb_middle"`
	BBLower    *float64 `json:"bb_lower"`
	OBV        *float64 `json:"obv"`
	Volatility *float64 `json:"volatility"`
}

// AssetAnalysis is the per-asset cycle snapshot exposed to readers.
type AssetAnalysis struct {
	Symbol     string            `json:"symbol"`
	CycleAt    time.Time         `json:"cycle_at"`
	LastBar    Candle            `json:"last_bar"`
	Change24h  *float64          `json:"change_24h,omitempty"`
	Change7d   *float64          `json:"change_7d,omitempty"`
	Indicators IndicatorSnapshot `json:"indicators"`
	Technical  TechnicalSignal   `json:"technical"`
	Sentiment  SentimentSignal   `json:"sentiment"`
	Combined   CombinedSignal    `json:"combined"`
	Action     TradeAction       `json:"action"`
}

// TradeSummary aggregates the trade history.
type TradeSummary struct {
	TotalTrades    int     `json:"total_trades"`
	Buys           int     `json:"buys"`
	Sells          int     `json:"sells"`
	TotalBoughtUSD float64 `json:"total_bought_usd"`
	TotalSoldUSD   float64 `json:"total_sold_usd"`
	RealizedPnL    float64 `json:"realized_pnl"`
}
