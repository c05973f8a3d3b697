package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/store"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// --- Shared response types ---

type lineItemResponse struct {
	MenuID    int64  `json:"menu_id"`
	FoodName  string `json:"food_name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type cartResponse struct {
	OrderNumber    string             `json:"order_number"`
	Status         string             `json:"status"`
	CustomerPhone  string             `json:"customer_phone"`
	RestaurantID   int64              `json:"restaurant_id"`
	RestaurantName string             `json:"restaurant_name"`
	ItemsCount     int32              `json:"items_count"`
	Subtotal       string             `json:"subtotal"`
	Taxes          string             `json:"taxes"`
	FoodItems      []lineItemResponse `json:"fooditems"`
	DueDate        time.Time          `json:"due_date"`
	State          *string            `json:"state"`
	City           *string            `json:"city"`
	StreetAddress  *string            `json:"street_address"`
	PostalCode     *string            `json:"postal_code"`
}

// orderResponse extends cartResponse with the server-computed grand total
// for history listings.
type orderResponse struct {
	cartResponse
	Total string `json:"total"`
}

func toCartResponse(c *store.Cart) cartResponse {
	resp := cartResponse{
		OrderNumber:    c.OrderNumber,
		Status:         c.Status,
		CustomerPhone:  c.CustomerPhone,
		RestaurantID:   c.RestaurantID,
		RestaurantName: c.RestaurantName,
		ItemsCount:     c.ItemsCount,
		Subtotal:       numericToString(c.Subtotal),
		Taxes:          numericToString(c.Taxes),
		DueDate:        c.DueDate,
	}

	resp.FoodItems = make([]lineItemResponse, len(c.FoodItems))
	for i, it := range c.FoodItems {
		resp.FoodItems[i] = lineItemResponse{
			MenuID:    it.MenuID,
			FoodName:  it.FoodName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		}
	}

	if c.State.Valid {
		resp.State = &c.State.String
	}
	if c.City.Valid {
		resp.City = &c.City.String
	}
	if c.StreetAddress.Valid {
		resp.StreetAddress = &c.StreetAddress.String
	}
	if c.PostalCode.Valid {
		resp.PostalCode = &c.PostalCode.String
	}

	return resp
}

func toOrderResponse(c *store.Cart) orderResponse {
	total := numericToDecimal(c.Subtotal).Add(numericToDecimal(c.Taxes))
	return orderResponse{
		cartResponse: toCartResponse(c),
		Total:        total.StringFixed(2),
	}
}
