package model

// ConnName identifies an upstream dependency owned by the registry.
type ConnName string

const (
	ConnBroker     ConnName = "broker"
	ConnMarketData ConnName = "market_data"
	ConnDatabase   ConnName = "database"
	ConnCache      ConnName = "cache"
)

// AllConnNames returns the closed set of registry connection names.
func AllConnNames() []ConnName {
	return []ConnName{ConnBroker, ConnMarketData, ConnDatabase, ConnCache}
}

// Valid reports whether the name is one of the known upstream connections.
func (n ConnName) Valid() bool {
	switch n {
	case ConnBroker, ConnMarketData, ConnDatabase, ConnCache:
		return true
	}
	return false
}

// Topic identifies a bus topic consumed by the distribution hub.
type Topic string

const (
	TopicMarketData        Topic = "market_data"
	TopicTradeUpdates      Topic = "trade_updates"
	TopicSystemAlerts      Topic = "system_alerts"
	TopicUserNotifications Topic = "user_notifications"
)

// BridgeTopics returns the topics the hub bridge subscribes to.
func BridgeTopics() []Topic {
	return []Topic{TopicMarketData, TopicTradeUpdates, TopicSystemAlerts, TopicUserNotifications}
}

// Room names a client-facing distribution topic.
type Room string

const (
	RoomTradeUpdates Room = "trade_updates"
	RoomSystemAlerts Room = "system_alerts"
)

// MarketDataRoom returns the per-symbol market data room.
func MarketDataRoom(symbol string) Room {
	return Room("market_data:" + symbol)
}
