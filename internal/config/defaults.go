package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMaxReconnectAttempts = 10
	DefaultReconnectDelay       = 5 * time.Second
	DefaultHealthCheckInterval  = 30 * time.Second
	DefaultProbeTimeout         = 5 * time.Second

	DefaultOrderRateLimit         = 1 * time.Second
	DefaultMaxSymbolSubscriptions = 100

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultCacheAddr = "localhost:6379"

	DefaultMaxConcurrentInits       = 4
	DefaultMonitorInterval          = 30 * time.Second
	DefaultFailedPollsBeforeRefresh = 2

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 60 * time.Second

	DefaultServerPort = 8080

	DefaultLogLevel = "info"
	DefaultLogDir   = "logs"
)

func (c *PlatformConfig) applyDefaults() {
	// Connectivity defaults
	if c.Connectivity.MaxReconnectAttempts == 0 {
		c.Connectivity.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connectivity.ReconnectDelay == 0 {
		c.Connectivity.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connectivity.HealthCheckInterval == 0 {
		c.Connectivity.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.Connectivity.ProbeTimeout == 0 {
		c.Connectivity.ProbeTimeout = DefaultProbeTimeout
	}

	// Broker defaults
	if c.Broker.OrderRateLimit == 0 {
		c.Broker.OrderRateLimit = DefaultOrderRateLimit
	}
	if c.Broker.MaxSymbolSubscriptions == 0 {
		c.Broker.MaxSymbolSubscriptions = DefaultMaxSymbolSubscriptions
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Cache defaults
	if c.Cache.Addr == "" {
		c.Cache.Addr = DefaultCacheAddr
	}

	// Registry defaults
	if c.Registry.MaxConcurrentInits == 0 {
		c.Registry.MaxConcurrentInits = DefaultMaxConcurrentInits
	}
	if c.Registry.MonitorInterval == 0 {
		c.Registry.MonitorInterval = DefaultMonitorInterval
	}
	if c.Registry.FailedPollsBeforeRefresh == 0 {
		c.Registry.FailedPollsBeforeRefresh = DefaultFailedPollsBeforeRefresh
	}

	// Hub defaults
	if c.Hub.HeartbeatInterval == 0 {
		c.Hub.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Hub.HeartbeatTimeout == 0 {
		c.Hub.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = DefaultLogDir
	}
}
