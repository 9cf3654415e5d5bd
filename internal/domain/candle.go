package domain

import "time"

// Candle represents a single OHLCV bar for an asset at a given interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// CoinGeckoID maps internal symbols to CoinGecko API identifiers.
var CoinGeckoID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
}

// SupportedSymbols lists every symbol the market data adapter can resolve.
var SupportedSymbols = []string{
	"BTC", "ETH", "SOL", "XRP", "ADA",
	"DOGE", "DOT", "AVAX", "LINK", "MATIC",
}

// SupportedIntervals defines the candle intervals the adapter can build.
var SupportedIntervals = []string{"5m", "15m", "1h", "4h", "1d"}

// IsSupportedSymbol reports whether symbol has a CoinGecko mapping.
func IsSupportedSymbol(symbol string) bool {
	_, ok := CoinGeckoID[symbol]
	return ok
}
