package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/subhash0x/agentnet/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Hedera    HederaConfig    `mapstructure:"hedera"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs dispatch cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// OracleConfig selects and parameterises price sources.
type OracleConfig struct {
	// Providers are tried in order until one returns a usable quote.
	Providers      []string        `mapstructure:"providers"`
	Symbol         string          `mapstructure:"symbol"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	UserAgent      string          `mapstructure:"user_agent"`
	CoinGecko      CoinGeckoConfig `mapstructure:"coingecko"`
	Pyth           PythConfig      `mapstructure:"pyth"`
	Chainlink      ChainlinkConfig `mapstructure:"chainlink"`
}

// CoinGeckoConfig covers the CoinGecko simple-price endpoint.
type CoinGeckoConfig struct {
	BaseURL string `mapstructure:"base_url"`
	AssetID string `mapstructure:"asset_id"`
}

// PythConfig covers the Pyth Hermes price service.
type PythConfig struct {
	BaseURL string `mapstructure:"base_url"`
	FeedID  string `mapstructure:"feed_id"`
}

// ChainlinkConfig covers the on-chain aggregator read.
type ChainlinkConfig struct {
	RPCURL            string `mapstructure:"rpc_url"`
	AggregatorAddress string `mapstructure:"aggregator_address"`
}

// HederaConfig covers consensus-service connectivity and topic routing.
type HederaConfig struct {
	Network        string        `mapstructure:"network"`
	OperatorID     string        `mapstructure:"operator_id"`
	OperatorKey    string        `mapstructure:"operator_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Topics         TopicsConfig  `mapstructure:"topics"`
}

// TopicsConfig holds the statically routed signal topics per action. An
// empty entry falls back to the alert's own stored topic, then to lazy
// provisioning when the alert has none yet.
type TopicsConfig struct {
	Buy    string `mapstructure:"buy"`
	Sell   string `mapstructure:"sell"`
	Notify string `mapstructure:"notify"`
}

// DispatchConfig tunes one evaluation pass.
type DispatchConfig struct {
	Workers            int           `mapstructure:"workers"`
	DefaultCooldown    time.Duration `mapstructure:"default_cooldown"`
	PublishTimeout     time.Duration `mapstructure:"publish_timeout"`
	RepositoryTimeout  time.Duration `mapstructure:"repository_timeout"`
	TopicProvisionMemo string        `mapstructure:"topic_provision_memo"`
	RecordSignals      bool          `mapstructure:"record_signals"`
}

// AlertingConfig defines the optional operator-facing signal mirror.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AGENTNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "agentnet")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x61676e74))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("oracle.providers", []string{"pyth", "coingecko"})
	v.SetDefault("oracle.symbol", "HBAR")
	v.SetDefault("oracle.request_timeout", "10s")
	v.SetDefault("oracle.user_agent", "agentnet/1.0")
	v.SetDefault("oracle.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("oracle.coingecko.asset_id", "hedera-hashgraph")
	v.SetDefault("oracle.pyth.base_url", "https://hermes.pyth.network")
	v.SetDefault("oracle.pyth.feed_id", "3728e591097635310e6341af53db8b7ee42da9b3a8d918f9463ce9cca886dfbd")

	v.SetDefault("hedera.network", "testnet")
	v.SetDefault("hedera.request_timeout", "30s")

	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.default_cooldown", "1h")
	v.SetDefault("dispatch.publish_timeout", "30s")
	v.SetDefault("dispatch.repository_timeout", "10s")
	v.SetDefault("dispatch.topic_provision_memo", "agentnet signals")
	v.SetDefault("dispatch.record_signals", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch.workers must be greater than zero")
	}
	if c.Dispatch.DefaultCooldown < 0 {
		return fmt.Errorf("dispatch.default_cooldown cannot be negative")
	}
	if len(c.Oracle.Providers) == 0 {
		return fmt.Errorf("oracle.providers must name at least one provider")
	}
	for _, p := range c.Oracle.Providers {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "coingecko", "pyth", "chainlink":
		default:
			return fmt.Errorf("oracle.providers contains unknown provider %q", p)
		}
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// TopicFor returns the statically configured topic for an action, if any.
func (t TopicsConfig) TopicFor(action string) string {
	switch action {
	case "buy":
		return t.Buy
	case "sell":
		return t.Sell
	case "notify":
		return t.Notify
	default:
		return ""
	}
}
