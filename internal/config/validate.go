package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *PlatformConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Connectivity.MaxReconnectAttempts < 1 {
		return errors.New("connectivity.max_reconnect_attempts must be >= 1")
	}
	if c.Connectivity.ReconnectDelay <= 0 {
		return errors.New("connectivity.reconnect_delay must be positive")
	}
	if c.Connectivity.HealthCheckInterval <= 0 {
		return errors.New("connectivity.health_check_interval must be positive")
	}

	if c.Broker.URL == "" {
		return errors.New("broker.url is required")
	}
	if c.Broker.MaxSymbolSubscriptions < 1 {
		return errors.New("broker.max_symbol_subscriptions must be >= 1")
	}

	if c.MarketData.URL == "" {
		return errors.New("market_data.url is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Registry.MaxConcurrentInits < 1 {
		return errors.New("registry.max_concurrent_inits must be >= 1")
	}
	if c.Registry.FailedPollsBeforeRefresh < 1 {
		return errors.New("registry.failed_polls_before_refresh must be >= 1")
	}

	if c.Hub.HeartbeatTimeout < c.Hub.HeartbeatInterval {
		return errors.New("hub.heartbeat_timeout must be >= hub.heartbeat_interval")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
