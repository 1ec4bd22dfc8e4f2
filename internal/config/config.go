package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Provider Provider `mapstructure:"provider"`
	Backtest Backtest `mapstructure:"backtest"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
}

// Provider holds the configuration for the market data API.
type Provider struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIToken       string  `mapstructure:"api_token"`
	VIXSymbol      string  `mapstructure:"vix_symbol"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	CacheTTL       int     `mapstructure:"cache_ttl"` // seconds
}

// Backtest holds the strategy parameters for a run. It is validated once
// before a run starts and treated as immutable afterwards.
type Backtest struct {
	StartDate      string   `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string   `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	Symbols        []string `mapstructure:"symbols"`
	Budget         float64  `mapstructure:"budget" validate:"gt=0"`
	StopLoss       float64  `mapstructure:"stop_loss" validate:"gt=0,lte=1"`
	ProfitTarget   float64  `mapstructure:"profit_target" validate:"gt=0"`
	RSIOversold    float64  `mapstructure:"rsi_oversold" validate:"gte=0,lt=50"`
	RSIOverbought  float64  `mapstructure:"rsi_overbought" validate:"gt=50,lte=100"`
	MinVIX         float64  `mapstructure:"min_vix" validate:"gte=0"`
	MaxHoldDays    int      `mapstructure:"max_hold_days" validate:"gte=1"`
	MaxConcurrency int      `mapstructure:"max_concurrency" validate:"gte=1"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultSymbols is the watchlist used when the config lists none.
var DefaultSymbols = []string{"AAPL", "MSFT", "NVDA", "TSLA", "SPY"}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("provider.rate_limit", 5) // requests per second
	viper.SetDefault("provider.rate_limit_burst", 2)
	viper.SetDefault("provider.vix_symbol", "VIX")
	viper.SetDefault("provider.cache_ttl", 3600)
	viper.SetDefault("backtest.budget", 500)
	viper.SetDefault("backtest.stop_loss", 0.45)
	viper.SetDefault("backtest.profit_target", 1.0)
	viper.SetDefault("backtest.rsi_oversold", 30)
	viper.SetDefault("backtest.rsi_overbought", 70)
	viper.SetDefault("backtest.min_vix", 15)
	viper.SetDefault("backtest.max_hold_days", 10)
	viper.SetDefault("backtest.max_concurrency", 4)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if len(config.Backtest.Symbols) == 0 {
		config.Backtest.Symbols = DefaultSymbols
	}

	err = Validate(&config.Backtest)
	return
}

// Validate checks the backtest parameters against their declared constraints.
func Validate(bt *Backtest) error {
	return validator.New().Struct(bt)
}
