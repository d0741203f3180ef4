// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/dexswap/internal/settings"
)

// Quote sources.
const (
	QuoteSourceStatic  = "static"
	QuoteSourceUniswap = "uniswap"
)

// Wallet adapters.
const (
	WalletStub     = "stub"
	WalletEthereum = "ethereum"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
	Tokens    TokensConfig    `mapstructure:"tokens"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Uniswap   UniswapConfig   `mapstructure:"uniswap"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Trade     TradeConfig     `mapstructure:"trade"`
	Settings  SettingsConfig  `mapstructure:"settings"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	ServiceName     string  `mapstructure:"service_name"`
	TraceExporter   string  `mapstructure:"trace_exporter"` // zipkin|otlp-grpc|otlp-http|stdout|none
	ZipkinURL       string  `mapstructure:"zipkin_url"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	MetricsExporter string  `mapstructure:"metrics_exporter"` // prometheus|otlp
	PrometheusPort  int     `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TokensConfig points at the token list.
type TokensConfig struct {
	ChainID      uint64        `mapstructure:"chain_id"`
	ListURL      string        `mapstructure:"list_url"`
	ListFile     string        `mapstructure:"list_file"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// QuoteConfig configures the estimation service.
type QuoteConfig struct {
	Source  string        `mapstructure:"source"`
	FeeRate string        `mapstructure:"fee_rate"`
	Latency time.Duration `mapstructure:"latency"`
	// Prices maps "BASE_QUOTE" to a base-unit rate (quote base units per
	// whole base token). Keys are case-insensitive.
	Prices map[string]string `mapstructure:"prices"`
	// Depth maps "BASE_QUOTE" to the largest quote-side output the pair
	// can fill, in natural units.
	Depth       map[string]string `mapstructure:"depth"`
	PriceImpact string            `mapstructure:"price_impact"`
	FeedURL     string            `mapstructure:"feed_url"`
}

// FeeRateDecimal returns the fee as a fraction.
func (c *QuoteConfig) FeeRateDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.FeeRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PriceImpactDecimal returns the constant price impact percentage.
func (c *QuoteConfig) PriceImpactDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.PriceImpact)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PriceTable returns Prices keyed by upper-case pair names.
func (c *QuoteConfig) PriceTable() map[string]string {
	return upperKeys(c.Prices)
}

// DepthTable returns Depth keyed by upper-case pair names.
func (c *QuoteConfig) DepthTable() map[string]string {
	return upperKeys(c.Depth)
}

// EthereumConfig holds JSON-RPC settings shared by the on-chain adapters.
type EthereumConfig struct {
	HTTPURL           string        `mapstructure:"http_url"`
	ChainID           uint64        `mapstructure:"chain_id"`
	PrivateKey        string        `mapstructure:"private_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	ReceiptTimeout    time.Duration `mapstructure:"receipt_timeout"`
}

// UniswapConfig holds the contract addresses used for quotes and trades.
type UniswapConfig struct {
	QuoterAddress    string `mapstructure:"quoter_address"`
	RouterV2Address  string `mapstructure:"router_v2_address"`
	FactoryV2Address string `mapstructure:"factory_v2_address"`
	FeeTier          int    `mapstructure:"fee_tier"`
}

// QuoterAddressHex returns the quoter address as common.Address.
func (c *UniswapConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// RouterAddressHex returns the V2 router address as common.Address.
func (c *UniswapConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterV2Address)
}

// FactoryAddressHex returns the V2 factory address as common.Address.
func (c *UniswapConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(c.FactoryV2Address)
}

// WalletConfig selects and tunes the wallet adapter.
type WalletConfig struct {
	Adapter string        `mapstructure:"adapter"`
	Latency time.Duration `mapstructure:"latency"`
	// Balances seeds the stub wallet: symbol -> natural-unit amount.
	Balances map[string]string `mapstructure:"balances"`
	// Pools seeds the stub wallet: "A_B" -> "reserveA:reserveB:lpSupply".
	Pools map[string]string `mapstructure:"pools"`
}

// BalanceTable returns Balances keyed by upper-case symbols.
func (c *WalletConfig) BalanceTable() map[string]string {
	return upperKeys(c.Balances)
}

// PoolTable returns Pools keyed by upper-case pair names.
func (c *WalletConfig) PoolTable() map[string]string {
	return upperKeys(c.Pools)
}

// viper lower-cases map keys read from files; symbols are upper case.
func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// TradeConfig tunes the trade controllers.
type TradeConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// SettingsConfig holds the initial user settings.
type SettingsConfig struct {
	Slippage string `mapstructure:"slippage"`
	Deadline string `mapstructure:"deadline"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DEXSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "DEXSWAP_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "DEXSWAP_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "DEXSWAP_LOG_LEVEL", "LOG_LEVEL")

	// Telemetry
	_ = v.BindEnv("telemetry.enabled", "DEXSWAP_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "DEXSWAP_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "DEXSWAP_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Ethereum
	_ = v.BindEnv("ethereum.http_url", "DEXSWAP_ETH_HTTP_URL", "ETH_HTTP_URL")
	_ = v.BindEnv("ethereum.chain_id", "DEXSWAP_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	_ = v.BindEnv("ethereum.private_key", "DEXSWAP_ETH_PRIVATE_KEY", "ETH_PRIVATE_KEY")

	// Tokens / quote / wallet
	_ = v.BindEnv("tokens.list_url", "DEXSWAP_TOKEN_LIST_URL", "TOKEN_LIST_URL")
	_ = v.BindEnv("quote.source", "DEXSWAP_QUOTE_SOURCE")
	_ = v.BindEnv("quote.feed_url", "DEXSWAP_PRICE_FEED_URL", "PRICE_FEED_URL")
	_ = v.BindEnv("wallet.adapter", "DEXSWAP_WALLET_ADAPTER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dexswap")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dexswap")
	v.SetDefault("telemetry.trace_exporter", "otlp-grpc")
	v.SetDefault("telemetry.zipkin_url", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metrics_exporter", "prometheus")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)

	v.SetDefault("tokens.chain_id", 607)
	v.SetDefault("tokens.fetch_timeout", "10s")

	v.SetDefault("quote.source", QuoteSourceStatic)
	v.SetDefault("quote.fee_rate", "0.003")
	v.SetDefault("quote.latency", "300ms")
	v.SetDefault("quote.prices", map[string]any{"TON_USDT": "3763139"})
	v.SetDefault("quote.price_impact", "0")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.requests_per_minute", 600)
	v.SetDefault("ethereum.receipt_timeout", "2m")

	// Mainnet deployments
	v.SetDefault("uniswap.quoter_address", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("uniswap.router_v2_address", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	v.SetDefault("uniswap.factory_v2_address", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v.SetDefault("uniswap.fee_tier", 3000)

	v.SetDefault("wallet.adapter", WalletStub)
	v.SetDefault("wallet.latency", "500ms")
	v.SetDefault("wallet.balances", map[string]any{"TON": "100", "USDT": "250"})
	v.SetDefault("wallet.pools", map[string]any{"TON_USDT": "10000:37631.39:1000"})

	v.SetDefault("trade.refresh_interval", "10s")

	v.SetDefault("settings.slippage", settings.DefaultSlippage)
	v.SetDefault("settings.deadline", settings.DefaultDeadline)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Quote.Source {
	case QuoteSourceStatic:
	case QuoteSourceUniswap:
		if c.Ethereum.HTTPURL == "" {
			return fmt.Errorf("ethereum.http_url is required for the uniswap quote source")
		}
		if !common.IsHexAddress(c.Uniswap.QuoterAddress) {
			return fmt.Errorf("invalid uniswap.quoter_address: %s", c.Uniswap.QuoterAddress)
		}
	default:
		return fmt.Errorf("unknown quote.source: %q", c.Quote.Source)
	}

	fee, err := decimal.NewFromString(c.Quote.FeeRate)
	if err != nil || fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("quote.fee_rate must be a fraction in [0, 1): %q", c.Quote.FeeRate)
	}
	for pair, rate := range c.Quote.Prices {
		if _, err := decimal.NewFromString(rate); err != nil {
			return fmt.Errorf("quote.prices[%s]: %w", pair, err)
		}
	}

	switch c.Wallet.Adapter {
	case WalletStub:
	case WalletEthereum:
		if c.Ethereum.HTTPURL == "" || c.Ethereum.PrivateKey == "" {
			return fmt.Errorf("ethereum.http_url and ethereum.private_key are required for the ethereum wallet")
		}
		if !common.IsHexAddress(c.Uniswap.RouterV2Address) || !common.IsHexAddress(c.Uniswap.FactoryV2Address) {
			return fmt.Errorf("uniswap router/factory addresses are required for the ethereum wallet")
		}
	default:
		return fmt.Errorf("unknown wallet.adapter: %q", c.Wallet.Adapter)
	}

	if c.Trade.RefreshInterval <= 0 {
		return fmt.Errorf("trade.refresh_interval must be positive")
	}
	if _, err := settings.ParseSlippage(c.Settings.Slippage); err != nil {
		return fmt.Errorf("settings.slippage: %w", err)
	}
	if _, err := settings.ParseDeadline(c.Settings.Deadline); err != nil {
		return fmt.Errorf("settings.deadline: %w", err)
	}
	return nil
}
