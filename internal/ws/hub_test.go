package ws

import (
	"encoding/json"
	"testing"
	"time"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, phone string) *Client {
	return &Client{
		hub:   hub,
		phone: phone,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "5551234567")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms["5551234567"] == nil {
		t.Fatal("customer room not created")
	}
	if !hub.rooms["5551234567"][client] {
		t.Fatal("client not registered in customer room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "5551234567")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms["5551234567"] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
}

func TestBroadcastScopedToPhone(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := mockClient(hub, "5551111111")
	bob := mockClient(hub, "5552222222")

	hub.register <- alice
	hub.register <- bob
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`{"order_number":"A0000042"}`)
	hub.BroadcastToPhone("5551111111", Event{Type: "order.status", Payload: payload})

	select {
	case msg := <-alice.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if received.Type != "order.status" {
			t.Errorf("type = %q, want order.status", received.Type)
		}
		if string(received.Payload) != string(payload) {
			t.Errorf("payload = %s, want %s", received.Payload, payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("alice did not receive message")
	}

	select {
	case <-bob.send:
		t.Fatal("bob should not receive another customer's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToMultipleDevices(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Same customer signed in on three devices.
	phone := "5551234567"
	devices := []*Client{mockClient(hub, phone), mockClient(hub, phone), mockClient(hub, phone)}
	for _, d := range devices {
		hub.register <- d
	}
	time.Sleep(10 * time.Millisecond)

	hub.OrderStatusChanged(phone, "A0000007", "Thai Basil", "preparing")

	for i, d := range devices {
		select {
		case msg := <-d.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("device %d: unmarshal: %v", i+1, err)
			}
			var p OrderStatusPayload
			if err := json.Unmarshal(received.Payload, &p); err != nil {
				t.Fatalf("device %d: unmarshal payload: %v", i+1, err)
			}
			if p.OrderNumber != "A0000007" || p.Status != "preparing" {
				t.Errorf("device %d: payload = %+v", i+1, p)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("device %d did not receive message", i+1)
		}
	}
}

func TestBroadcastToUnknownPhone(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, "5551234567")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToPhone("5559999999", Event{Type: "order.status", Payload: json.RawMessage(`{}`)})

	select {
	case <-client.send:
		t.Fatal("client should not receive event for a different customer")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCleanupPartialRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	phone := "5551234567"
	c1 := mockClient(hub, phone)
	c2 := mockClient(hub, phone)

	hub.register <- c1
	hub.register <- c2
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- c1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[phone]) != 1 {
		t.Fatalf("clients = %d, want 1 after first unregister", len(hub.rooms[phone]))
	}
	hub.mu.RUnlock()

	hub.unregister <- c2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[phone] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}
