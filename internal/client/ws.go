package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// OrderEvent is a server push about one of the customer's orders.
type OrderEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OrderStatusUpdate is the payload of an "order.status" event.
type OrderStatusUpdate struct {
	OrderNumber    string `json:"order_number"`
	RestaurantName string `json:"restaurant_name"`
	Status         string `json:"status"`
}

// WatchOrders opens a WebSocket subscription to the customer's order
// updates and delivers events on the returned channel. The channel closes
// when the connection drops or ctx is cancelled.
func (c *Client) WatchOrders(ctx context.Context) (<-chan OrderEvent, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/ws/orders?token=" + url.QueryEscape(c.token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, ErrUnauthorized
		}
		return nil, &TransportError{Op: "dial " + wsURL, Err: err}
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	events := make(chan OrderEvent)

	// Close the connection when the caller gives up, which unblocks the
	// read loop below.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev OrderEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
