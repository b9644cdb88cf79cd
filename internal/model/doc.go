// Package model defines the shared identifiers and event types that flow
// between the registry, the bus, and the distribution hub.
//
// Conventions:
//   - Connection names, topics, and rooms are closed newtype sets, not bare strings
//   - Event payloads are opaque json.RawMessage; only routing fields are ever read
//   - Timestamps: time.Time in UTC
package model
