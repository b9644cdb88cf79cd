// Package hub is the real-time distribution layer: it multiplexes many
// client sockets per user, groups them into named rooms, bridges the
// internal event bus into client messages, and prunes dead clients via
// heartbeats. Socket writes never happen while holding the hub lock.
package hub
