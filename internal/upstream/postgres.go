package upstream

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds the database connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ConnString builds a PostgreSQL connection string, URL-encoding the
// password to handle special characters.
func (c PostgresConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslMode,
	)
}

// Postgres is the database transport backed by a pgx pool.
type Postgres struct {
	cfg PostgresConfig

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewPostgres creates the database transport.
func NewPostgres(cfg PostgresConfig) *Postgres {
	return &Postgres{cfg: cfg}
}

// Open creates the pool and verifies it with a ping.
func (p *Postgres) Open(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.ConnString())
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MinConns = int32(p.cfg.MinConns)
	poolCfg.MaxConns = int32(p.cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	p.mu.Lock()
	p.pool = pool
	p.mu.Unlock()
	return nil
}

// Close releases the pool. Safe when not open.
func (p *Postgres) Close() error {
	p.mu.Lock()
	pool := p.pool
	p.pool = nil
	p.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
	return nil
}

// Probe pings the database.
func (p *Postgres) Probe(ctx context.Context) error {
	p.mu.RLock()
	pool := p.pool
	p.mu.RUnlock()

	if pool == nil {
		return ErrNotOpen
	}
	return pool.Ping(ctx)
}

// Pool returns the live pool for query callers, or nil when closed.
func (p *Postgres) Pool() *pgxpool.Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool
}
