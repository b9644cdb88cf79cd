// Package bus is the in-memory publish/subscribe bus carrying domain events
// (fills, position deltas, alerts, prices) from producers to the
// distribution hub. Publishing never blocks: a subscriber whose queue is
// full drops the event and the bus counts the drop.
package bus
