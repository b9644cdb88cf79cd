package hub

import (
	"context"
	"testing"
	"time"

	"github.com/jstrand/tradelink/internal/bus"
	"github.com/jstrand/tradelink/internal/model"
)

func startBridge(t *testing.T, h *Hub) *bus.Bus {
	t.Helper()
	b := bus.New()
	br := NewBridge(b, h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		br.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})

	// Give Run a moment to register its subscriptions.
	time.Sleep(20 * time.Millisecond)
	return b
}

func waitForMessage(t *testing.T, sock *fakeSocket) eventMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if msg, ok := sock.last().(eventMessage); ok {
			return msg
		}
		select {
		case <-deadline:
			t.Fatal("no event delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBridgeRoutesMarketDataBySymbol(t *testing.T) {
	h := newTestHub()
	b := startBridge(t, h)

	xyz, abc := &fakeSocket{}, &fakeSocket{}
	xyzID := h.Accept(xyz, "alice")
	abcID := h.Accept(abc, "bob")
	h.Subscribe(xyzID, model.MarketDataRoom("XYZ"))
	h.Subscribe(abcID, model.MarketDataRoom("ABC"))

	b.Publish(model.NewEvent(model.TopicMarketData, []byte(`{"symbol":"XYZ","price":101.5}`)))

	msg := waitForMessage(t, xyz)
	if msg.Type != string(model.TopicMarketData) {
		t.Errorf("message type = %q, want market_data", msg.Type)
	}
	if string(msg.Data) != `{"symbol":"XYZ","price":101.5}` {
		t.Errorf("payload = %s, want original event payload", msg.Data)
	}

	// The other symbol's room must not receive it.
	time.Sleep(50 * time.Millisecond)
	if abc.count() != 0 {
		t.Errorf("ABC subscriber received %d messages, want 0", abc.count())
	}
}

func TestBridgeRoutesFixedTopics(t *testing.T) {
	h := newTestHub()
	b := startBridge(t, h)

	trades, alerts := &fakeSocket{}, &fakeSocket{}
	tradesID := h.Accept(trades, "alice")
	alertsID := h.Accept(alerts, "bob")
	h.Subscribe(tradesID, model.RoomTradeUpdates)
	h.Subscribe(alertsID, model.RoomSystemAlerts)

	b.Publish(model.NewEvent(model.TopicTradeUpdates, []byte(`{"order_id":"o-1","status":"filled"}`)))
	b.Publish(model.NewEvent(model.TopicSystemAlerts, []byte(`{"level":"critical"}`)))

	if msg := waitForMessage(t, trades); msg.Type != string(model.TopicTradeUpdates) {
		t.Errorf("trades message type = %q, want trade_updates", msg.Type)
	}
	if msg := waitForMessage(t, alerts); msg.Type != string(model.TopicSystemAlerts) {
		t.Errorf("alerts message type = %q, want system_alerts", msg.Type)
	}
	if trades.count() != 1 || alerts.count() != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", trades.count(), alerts.count())
	}
}

func TestBridgeRoutesUserNotifications(t *testing.T) {
	h := newTestHub()
	b := startBridge(t, h)

	s1, s2, other := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	h.Accept(s1, "alice")
	h.Accept(s2, "alice")
	h.Accept(other, "bob")

	b.Publish(model.NewEvent(model.TopicUserNotifications, []byte(`{"user_id":"alice","text":"hi"}`)))

	waitForMessage(t, s1)
	waitForMessage(t, s2)
	time.Sleep(50 * time.Millisecond)
	if other.count() != 0 {
		t.Errorf("other user received %d messages, want 0", other.count())
	}
}

func TestBridgeDropsMalformedPayloads(t *testing.T) {
	h := newTestHub()
	b := startBridge(t, h)

	sock := &fakeSocket{}
	id := h.Accept(sock, "alice")
	h.Subscribe(id, model.MarketDataRoom("XYZ"))

	// Missing symbol, then invalid JSON, then missing user id. All dropped.
	b.Publish(model.NewEvent(model.TopicMarketData, []byte(`{"price":1.0}`)))
	b.Publish(model.NewEvent(model.TopicMarketData, []byte(`{broken`)))
	b.Publish(model.NewEvent(model.TopicUserNotifications, []byte(`{"text":"hi"}`)))

	// A well-formed event still flows afterwards.
	b.Publish(model.NewEvent(model.TopicMarketData, []byte(`{"symbol":"XYZ","price":2.0}`)))

	msg := waitForMessage(t, sock)
	if string(msg.Data) != `{"symbol":"XYZ","price":2.0}` {
		t.Errorf("payload = %s, want the well-formed event", msg.Data)
	}
	if sock.count() != 1 {
		t.Errorf("deliveries = %d, want 1", sock.count())
	}
}
