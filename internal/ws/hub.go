package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is a WebSocket message pushed to connected customers.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OrderStatusPayload is the payload of an "order.status" event.
type OrderStatusPayload struct {
	OrderNumber    string `json:"order_number"`
	RestaurantName string `json:"restaurant_name"`
	Status         string `json:"status"`
}

// phoneEvent routes an event to one customer's connections.
type phoneEvent struct {
	Phone string
	Event Event
}

// Hub maintains the set of active customer connections and broadcasts
// order updates to them. Connections are grouped by customer phone, since
// one customer may have the app open on several devices.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *phoneEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *phoneEvent, 256),
	}
}

// Run starts the hub's main loop. Call as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.phone] == nil {
				h.rooms[client.phone] = make(map[*Client]bool)
			}
			h.rooms[client.phone][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.phone]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.phone)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Phone]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the connection.
					close(client.send)
					delete(h.rooms[event.Phone], client)
					if len(h.rooms[event.Phone]) == 0 {
						delete(h.rooms, event.Phone)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToPhone sends an event to all of a customer's connections.
func (h *Hub) BroadcastToPhone(phone string, event Event) {
	h.broadcast <- &phoneEvent{Phone: phone, Event: event}
}

// OrderStatusChanged notifies a customer that one of their orders moved to
// a new status. Satisfies handler.StatusNotifier.
func (h *Hub) OrderStatusChanged(phone, orderNumber, restaurantName, status string) {
	payload, err := json.Marshal(OrderStatusPayload{
		OrderNumber:    orderNumber,
		RestaurantName: restaurantName,
		Status:         status,
	})
	if err != nil {
		log.Printf("ERROR: marshal order status payload: %v", err)
		return
	}
	h.BroadcastToPhone(phone, Event{Type: "order.status", Payload: payload})
}
