package config

import "time"

// PlatformConfig is the root configuration for a platform instance.
type PlatformConfig struct {
	Instance     InstanceConfig     `yaml:"instance"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Broker       BrokerConfig       `yaml:"broker"`
	MarketData   MarketDataConfig   `yaml:"market_data"`
	Database     DBConfig           `yaml:"database"`
	Cache        CacheConfig        `yaml:"cache"`
	Registry     RegistryConfig     `yaml:"registry"`
	Hub          HubConfig          `yaml:"hub"`
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// InstanceConfig identifies this platform instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// ConnectivityConfig holds the resilience settings shared by every managed
// upstream connection.
type ConnectivityConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	ExponentialBackoff   *bool         `yaml:"exponential_backoff"`
	HealthCheckInterval  time.Duration `yaml:"health_check_interval"`
	ProbeTimeout         time.Duration `yaml:"probe_timeout"`
}

// Exponential reports whether exponential backoff is enabled. Unset means
// enabled.
func (c ConnectivityConfig) Exponential() bool {
	return c.ExponentialBackoff == nil || *c.ExponentialBackoff
}

// BrokerConfig holds broker API settings.
type BrokerConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`

	// OrderRateLimit is the minimum delay between order-placement calls.
	OrderRateLimit time.Duration `yaml:"order_rate_limit"`

	// MaxSymbolSubscriptions is the venue's subscription quota. Independent
	// of max_reconnect_attempts.
	MaxSymbolSubscriptions int `yaml:"max_symbol_subscriptions"`
}

// MarketDataConfig holds the market data feed settings.
type MarketDataConfig struct {
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// CacheConfig holds the Redis connection.
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RegistryConfig holds connection registry orchestration settings.
type RegistryConfig struct {
	MaxConcurrentInits       int           `yaml:"max_concurrent_inits"`
	MonitorInterval          time.Duration `yaml:"monitor_interval"`
	FailedPollsBeforeRefresh int           `yaml:"failed_polls_before_refresh"`
}

// HubConfig holds client distribution settings.
type HubConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
}

// ServerConfig holds the client-facing HTTP server settings. The WebSocket,
// health, and stats endpoints share one port.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}
