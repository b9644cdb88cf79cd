// Package registry owns the named upstream connections (broker, market
// data, database, cache), initializes them with partial-failure tolerance,
// and supervises them with a background health monitor that force-refreshes
// a connection only after it has exhausted its own retry budget.
package registry
