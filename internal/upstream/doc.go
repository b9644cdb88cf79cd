// Package upstream provides the concrete transports supervised by the
// registry: broker and market-data WebSocket links, the Postgres pool, and
// the Redis cache. Each implements conn.Transport and stays reopenable
// after Close so the resilience layer can cycle it freely.
package upstream
