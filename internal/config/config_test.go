package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-platform
  az: us-east-1a
connectivity:
  max_reconnect_attempts: 5
  reconnect_delay: 2s
  exponential_backoff: false
broker:
  url: wss://demo-broker.example.com/ws
  api_key: test-key
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-platform" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-platform")
	}
	if cfg.Connectivity.MaxReconnectAttempts != 5 {
		t.Errorf("Connectivity.MaxReconnectAttempts = %d, want 5", cfg.Connectivity.MaxReconnectAttempts)
	}
	if cfg.Connectivity.ReconnectDelay != 2*time.Second {
		t.Errorf("Connectivity.ReconnectDelay = %v, want 2s", cfg.Connectivity.ReconnectDelay)
	}
	if cfg.Connectivity.Exponential() {
		t.Error("Exponential() = true, want false when explicitly disabled")
	}
	if cfg.Broker.URL != "wss://demo-broker.example.com/ws" {
		t.Errorf("Broker.URL = %q, want %q", cfg.Broker.URL, "wss://demo-broker.example.com/ws")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
}

func TestExponentialDefaultsOn(t *testing.T) {
	var c ConnectivityConfig
	if !c.Exponential() {
		t.Error("Exponential() = false for unset field, want true")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_BROKER_KEY", "key-abc")

	yaml := `
instance:
  id: test-platform
broker:
  url: wss://demo-broker.example.com/ws
  api_key: ${TEST_BROKER_KEY}
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.Broker.APIKey != "key-abc" {
		t.Errorf("Broker.APIKey = %q, want %q", cfg.Broker.APIKey, "key-abc")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-platform
broker:
  url: wss://demo-broker.example.com/ws
market_data:
  url: wss://demo-feed.example.com/ws
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Connectivity.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want default %d", cfg.Connectivity.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Connectivity.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("ReconnectDelay = %v, want default %v", cfg.Connectivity.ReconnectDelay, DefaultReconnectDelay)
	}
	if !cfg.Connectivity.Exponential() {
		t.Error("Exponential() = false, want true by default")
	}
	if cfg.Broker.OrderRateLimit != DefaultOrderRateLimit {
		t.Errorf("Broker.OrderRateLimit = %v, want default %v", cfg.Broker.OrderRateLimit, DefaultOrderRateLimit)
	}
	if cfg.Broker.MaxSymbolSubscriptions != DefaultMaxSymbolSubscriptions {
		t.Errorf("Broker.MaxSymbolSubscriptions = %d, want default %d", cfg.Broker.MaxSymbolSubscriptions, DefaultMaxSymbolSubscriptions)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Hub.HeartbeatTimeout != DefaultHeartbeatTimeout {
		t.Errorf("Hub.HeartbeatTimeout = %v, want default %v", cfg.Hub.HeartbeatTimeout, DefaultHeartbeatTimeout)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultServerPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() PlatformConfig {
		cfg := PlatformConfig{
			Instance:   InstanceConfig{ID: "test"},
			Broker:     BrokerConfig{URL: "wss://broker", MaxSymbolSubscriptions: 100},
			MarketData: MarketDataConfig{URL: "wss://feed"},
			Database:   DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*PlatformConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *PlatformConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *PlatformConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing broker url",
			mutate:  func(c *PlatformConfig) { c.Broker.URL = "" },
			wantErr: "broker.url is required",
		},
		{
			name:    "missing market data url",
			mutate:  func(c *PlatformConfig) { c.MarketData.URL = "" },
			wantErr: "market_data.url is required",
		},
		{
			name:    "missing database password",
			mutate:  func(c *PlatformConfig) { c.Database.Password = "" },
			wantErr: "database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *PlatformConfig) {
				c.Database.MaxConns = 5
				c.Database.MinConns = 10
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "zero reconnect attempts",
			mutate:  func(c *PlatformConfig) { c.Connectivity.MaxReconnectAttempts = -1 },
			wantErr: "connectivity.max_reconnect_attempts must be >= 1",
		},
		{
			name: "heartbeat timeout below interval",
			mutate: func(c *PlatformConfig) {
				c.Hub.HeartbeatInterval = time.Minute
				c.Hub.HeartbeatTimeout = time.Second
			},
			wantErr: "hub.heartbeat_timeout must be >= hub.heartbeat_interval",
		},
		{
			name:    "bad server port",
			mutate:  func(c *PlatformConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
