package upstream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jstrand/tradelink/internal/bus"
	"github.com/jstrand/tradelink/internal/model"
)

func TestMarketDataSubscribesAndPublishes(t *testing.T) {
	tick := `{"symbol":"XYZ","price":101.5}`

	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Expect one subscribe frame per configured symbol.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub map[string]string
		if err := json.Unmarshal(msg, &sub); err != nil {
			t.Errorf("subscribe frame not JSON: %v", err)
			return
		}
		if sub["action"] != "subscribe" || sub["symbol"] != "XYZ" {
			t.Errorf("unexpected subscribe frame: %s", msg)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(tick)); err != nil {
			return
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	b := bus.New()
	defer b.Close()
	events, cancel := b.Subscribe(model.TopicMarketData, 10)
	defer cancel()

	cfg := DefaultMarketDataConfig()
	cfg.URL = wsURL(server)
	cfg.Symbols = []string{"XYZ"}

	md := NewMarketData(cfg, b, nil)
	if err := md.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer md.Close()

	select {
	case ev := <-events:
		if ev.Topic != model.TopicMarketData {
			t.Errorf("Topic = %q, want market_data", ev.Topic)
		}
		if string(ev.Payload) != tick {
			t.Errorf("Payload = %s, want %s", ev.Payload, tick)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published from feed frame")
	}
}

func TestMarketDataReopenAfterClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	b := bus.New()
	defer b.Close()

	cfg := DefaultMarketDataConfig()
	cfg.URL = wsURL(server)

	md := NewMarketData(cfg, b, nil)
	for i := 0; i < 2; i++ {
		if err := md.Open(context.Background()); err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		if err := md.Probe(context.Background()); err != nil {
			t.Errorf("Probe %d failed: %v", i, err)
		}
		if err := md.Close(); err != nil {
			t.Errorf("Close %d failed: %v", i, err)
		}
	}
}
