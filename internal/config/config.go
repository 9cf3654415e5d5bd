package config

import (
	"fmt"
	"strings"
	"time"

	"crypto-trading-agent/internal/engine"
	"crypto-trading-agent/internal/position"
	"crypto-trading-agent/internal/sentiment"
	"crypto-trading-agent/internal/signal"
	"crypto-trading-agent/internal/ta"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL      string `mapstructure:"database_url"`
	RedisURL         string `mapstructure:"redis_url"`
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	OpenAIModel      string `mapstructure:"openai_model"`

	HTTPPort          int      `mapstructure:"http_port" validate:"gt=0,lt=65536"`
	APIKey            string   `mapstructure:"api_key"`
	SSHPort           int      `mapstructure:"ssh_port" validate:"gt=0,lt=65536"`
	SSHHostKeyPath    string   `mapstructure:"ssh_host_key_path"`
	SSHAllowedKeys    []string `mapstructure:"ssh_allowed_keys"`
	LogLevel          string   `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogEncoding       string   `mapstructure:"log_encoding" validate:"oneof=json console"`
	TracingEnabled    bool     `mapstructure:"tracing_enabled"`
	OTLPEndpoint      string   `mapstructure:"otel_exporter_otlp_endpoint"`
	LedgerPath        string   `mapstructure:"ledger_path" validate:"required"`
	AnalysisCacheTTL  int      `mapstructure:"analysis_cache_ttl_secs" validate:"gt=0"`
	PaperStartingCash float64  `mapstructure:"paper_starting_cash" validate:"gt=0"`

	Assets         []string `mapstructure:"assets" validate:"min=1,dive,required"`
	CandleInterval string   `mapstructure:"candle_interval" validate:"oneof=5m 15m 1h 4h 1d"`
	CandleLimit    int      `mapstructure:"candle_limit" validate:"gt=1"`
	CycleSchedule  string   `mapstructure:"cycle_schedule" validate:"required"`
	AgentAutostart bool     `mapstructure:"agent_autostart"`
	AssetDelayMS   int      `mapstructure:"asset_delay_ms" validate:"gte=0"`

	ShortMAWindow int     `mapstructure:"short_ma_window" validate:"gt=0,ltfield=LongMAWindow"`
	LongMAWindow  int     `mapstructure:"long_ma_window" validate:"gt=0"`
	RSIWindow     int     `mapstructure:"rsi_window" validate:"gt=0"`
	RSIOverbought float64 `mapstructure:"rsi_overbought" validate:"lte=100"`
	RSIOversold   float64 `mapstructure:"rsi_oversold" validate:"gte=0,ltfield=RSIOverbought"`
	MACDFast      int     `mapstructure:"macd_fast" validate:"gt=0,ltfield=MACDSlow"`
	MACDSlow      int     `mapstructure:"macd_slow" validate:"gt=0"`
	MACDSignal    int     `mapstructure:"macd_signal" validate:"gt=0"`

	SentimentPositive      float64  `mapstructure:"sentiment_positive"`
	SentimentNegative      float64  `mapstructure:"sentiment_negative" validate:"ltfield=SentimentPositive"`
	AuthorityWeight        float64  `mapstructure:"authority_weight" validate:"gte=0"`
	AuthorityAccounts      []string `mapstructure:"authority_accounts"`
	SentimentKeywords      []string `mapstructure:"sentiment_keywords"`
	SentimentMaxResults    int      `mapstructure:"sentiment_max_results" validate:"gt=0"`
	SentimentLookbackHours int      `mapstructure:"sentiment_lookback_hours" validate:"gt=0"`
	RedditSubs             []string `mapstructure:"reddit_subs"`
	NewsFeeds              []string `mapstructure:"news_feeds" validate:"dive,url"`

	MaxAllocation   float64 `mapstructure:"max_allocation" validate:"gt=0,lt=1"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct   float64 `mapstructure:"take_profit_pct" validate:"gt=0,lt=1"`
	MinConfidence   float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	TechWeight      float64 `mapstructure:"tech_weight" validate:"gte=0"`
	SentimentWeight float64 `mapstructure:"sentiment_weight" validate:"gte=0"`
}

var defaults = map[string]any{
	"redis_url":                   "localhost:6379",
	"openai_model":                "gpt-4o-mini",
	"http_port":                   8080,
	"ssh_port":                    2222,
	"ssh_host_key_path":           ".ssh/agent_ed25519",
	"ssh_allowed_keys":            []string{},
	"log_level":                   "info",
	"log_encoding":                "json",
	"tracing_enabled":             false,
	"otel_exporter_otlp_endpoint": "localhost:4317",
	"ledger_path":                 "data/trades.jsonl",
	"analysis_cache_ttl_secs":     900,
	"paper_starting_cash":         10000.0,

	"assets":          []string{"BTC", "ETH"},
	"candle_interval": "1h",
	"candle_limit":    200,
	"cycle_schedule":  "@every 15m",
	"agent_autostart": true,
	"asset_delay_ms":  2000,

	"short_ma_window": 20,
	"long_ma_window":  50,
	"rsi_window":      14,
	"rsi_overbought":  70.0,
	"rsi_oversold":    30.0,
	"macd_fast":       12,
	"macd_slow":       26,
	"macd_signal":     9,

	"sentiment_positive":       0.1,
	"sentiment_negative":       -0.1,
	"authority_weight":         2.0,
	"authority_accounts":       []string{},
	"sentiment_keywords":       []string{},
	"sentiment_max_results":    200,
	"sentiment_lookback_hours": 48,
	"reddit_subs":              []string{"CryptoCurrency", "Bitcoin", "ethereum"},
	"news_feeds":               []string{"https://www.coindesk.com/arc/outboundfeeds/rss/", "https://cointelegraph.com/rss"},

	"max_allocation":   0.1,
	"stop_loss_pct":    0.05,
	"take_profit_pct":  0.1,
	"min_confidence":   0.6,
	"tech_weight":      0.6,
	"sentiment_weight": 0.4,
}

// Load resolves configuration from defaults, an optional YAML file named by
// CONFIG_FILE and the environment, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("database_url", "")
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("api_key", "")
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Assets = upperList(c.Assets)
	c.AuthorityAccounts = splitList(c.AuthorityAccounts)
	c.SentimentKeywords = splitList(c.SentimentKeywords)
	c.RedditSubs = splitList(c.RedditSubs)
	c.NewsFeeds = splitList(c.NewsFeeds)
	c.SSHAllowedKeys = splitList(c.SSHAllowedKeys)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogEncoding = strings.ToLower(strings.TrimSpace(c.LogEncoding))
	c.CandleInterval = strings.TrimSpace(c.CandleInterval)
}

func (c *Config) Windows() ta.Windows {
	return ta.Windows{
		Short:      c.ShortMAWindow,
		Long:       c.LongMAWindow,
		RSI:        c.RSIWindow,
		MACDFast:   c.MACDFast,
		MACDSlow:   c.MACDSlow,
		MACDSignal: c.MACDSignal,
	}
}

func (c *Config) Engine() engine.Config {
	return engine.Config{
		Assets:   append([]string(nil), c.Assets...),
		Interval: c.CandleInterval,
		Limit:    c.CandleLimit,
		Windows:  c.Windows(),
		Technical: signal.TechnicalConfig{
			RSIOverbought: c.RSIOverbought,
			RSIOversold:   c.RSIOversold,
		},
		Sentiment: sentiment.Config{
			PositiveThreshold: c.SentimentPositive,
			NegativeThreshold: c.SentimentNegative,
			AuthorityWeight:   c.AuthorityWeight,
		},
		Weights:    signal.Weights{Technical: c.TechWeight, Sentiment: c.SentimentWeight},
		Keywords:   append([]string(nil), c.SentimentKeywords...),
		MaxResults: c.SentimentMaxResults,
		Lookback:   time.Duration(c.SentimentLookbackHours) * time.Hour,
	}
}

func (c *Config) Position() position.Config {
	return position.Config{
		MaxAllocation: c.MaxAllocation,
		StopLossPct:   c.StopLossPct,
		TakeProfitPct: c.TakeProfitPct,
		MinConfidence: c.MinConfidence,
	}
}

func (c *Config) AssetDelay() time.Duration {
	return time.Duration(c.AssetDelayMS) * time.Millisecond
}

func (c *Config) AnalysisTTL() time.Duration {
	return time.Duration(c.AnalysisCacheTTL) * time.Second
}

// splitList accepts both YAML lists and comma separated env values that
// arrive as a single element.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func upperList(in []string) []string {
	out := splitList(in)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}
