// Package conn implements the resilient connection state machine shared by
// every upstream dependency (broker, market data feed, database, cache).
//
// A Conn owns one Transport and drives it through connect/reconnect with
// jittered exponential backoff, a periodic health-check loop, and typed
// observer events. State transitions are a pure function of (state, event)
// so the machine is testable without I/O.
package conn
