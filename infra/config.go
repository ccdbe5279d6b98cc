package infra

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type CryptoConfig struct {
	RestURL          string        `envconfig:"CRYPTO_REST_URL" default:"https://api.binance.com"`
	WsURL            string        `envconfig:"CRYPTO_WS_URL" default:"wss://stream.binance.com:9443/ws"`
	HeartbeatTimeout time.Duration `envconfig:"CRYPTO_HEARTBEAT_TIMEOUT" default:"90s"`
}

type ForexConfig struct {
	RestURL          string        `envconfig:"FOREX_REST_URL" required:"true"`
	WsURL            string        `envconfig:"FOREX_WS_URL" required:"true"`
	Token            string        `envconfig:"FOREX_TOKEN"`
	HeartbeatTimeout time.Duration `envconfig:"FOREX_HEARTBEAT_TIMEOUT" default:"30s"`
}

type PricesConfig struct {
	URL     string        `envconfig:"PRICES_URL" required:"true"`
	Timeout time.Duration `envconfig:"PRICES_TIMEOUT" default:"10s"`
	// BatchSize bounds how many symbols go into one snapshot request.
	BatchSize int `envconfig:"PRICES_BATCH_SIZE" default:"10"`
}

type FeedConfig struct {
	BackoffMin    time.Duration `envconfig:"FEED_BACKOFF_MIN" default:"500ms"`
	BackoffMax    time.Duration `envconfig:"FEED_BACKOFF_MAX" default:"30s"`
	BackoffFactor float64       `envconfig:"FEED_BACKOFF_FACTOR" default:"2"`
	MaxAttempts   int           `envconfig:"FEED_MAX_ATTEMPTS" default:"10"`
}

type BackfillConfig struct {
	Timeout    time.Duration `envconfig:"BACKFILL_TIMEOUT" default:"15s"`
	MaxCandles int           `envconfig:"BACKFILL_MAX_CANDLES" default:"500"`
}

type ChartConfig struct {
	// RightMargin is how many bar widths of padding keep the forming
	// candle away from the right edge of the viewport.
	RightMargin int `envconfig:"CHART_RIGHT_MARGIN" default:"12"`
}

type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8082"`
}

type Config struct {
	CryptoConfig   CryptoConfig
	ForexConfig    ForexConfig
	PricesConfig   PricesConfig
	FeedConfig     FeedConfig
	BackfillConfig BackfillConfig
	ChartConfig    ChartConfig
	HTTPConfig     HTTPConfig
	Symbols        []string `envconfig:"SUPPORTED_SYMBOLS" default:"BTC,ETH,BNB,SOL,XRP,EUR/USD,GBP/USD,USD/JPY"`
}

func SetConfig(configPath string) Config {
	if err := godotenv.Load(configPath); err != nil {
		log.WithField("path", configPath).Warn("no env file loaded, using process environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.WithField("err", err).Panic("failed to load configuration")
	}

	return cfg
}
