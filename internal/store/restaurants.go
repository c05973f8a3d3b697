package store

import "context"

func (s *Store) GetRestaurant(ctx context.Context, id int64) (Restaurant, error) {
	var r Restaurant
	err := s.pool.QueryRow(ctx, `
		SELECT restaurant_id, restaurant_name, ratings, restaurant_type, pricing_levels
		FROM restaurant_table
		WHERE restaurant_id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Ratings, &r.Type, &r.PricingLevels)
	return r, err
}

func (s *Store) GetAddress(ctx context.Context, restaurantID int64) (Address, error) {
	var a Address
	err := s.pool.QueryRow(ctx, `
		SELECT restaurant_id, state, city, street_address, postal_code, latitude, longitude
		FROM address_table
		WHERE restaurant_id = $1`, restaurantID).
		Scan(&a.RestaurantID, &a.State, &a.City, &a.StreetAddress, &a.PostalCode, &a.Latitude, &a.Longitude)
	return a, err
}

// ListRestaurantsWithAddress joins restaurants to their addresses for the
// nearby search. Restaurants without an address row are excluded.
func (s *Store) ListRestaurantsWithAddress(ctx context.Context) ([]RestaurantWithAddress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.restaurant_id, r.restaurant_name, r.ratings, r.restaurant_type, r.pricing_levels,
		       a.restaurant_id, a.state, a.city, a.street_address, a.postal_code, a.latitude, a.longitude
		FROM restaurant_table r
		JOIN address_table a ON a.restaurant_id = r.restaurant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RestaurantWithAddress
	for rows.Next() {
		var rw RestaurantWithAddress
		if err := rows.Scan(
			&rw.Restaurant.ID, &rw.Restaurant.Name, &rw.Restaurant.Ratings,
			&rw.Restaurant.Type, &rw.Restaurant.PricingLevels,
			&rw.Address.RestaurantID, &rw.Address.State, &rw.Address.City,
			&rw.Address.StreetAddress, &rw.Address.PostalCode,
			&rw.Address.Latitude, &rw.Address.Longitude,
		); err != nil {
			return nil, err
		}
		result = append(result, rw)
	}
	return result, rows.Err()
}

func (s *Store) ListMenu(ctx context.Context, restaurantID int64) ([]MenuItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT menu_id, restaurant_id, food_name, food_price, category
		FROM menu_table
		WHERE restaurant_id = $1
		ORDER BY menu_id`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.MenuID, &m.RestaurantID, &m.FoodName, &m.FoodPrice, &m.Category); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// GetMenuItem looks an item up by its full identity within a restaurant's
// menu. Both menu_id and food_name must match, mirroring the fooditems
// line-entry identity.
func (s *Store) GetMenuItem(ctx context.Context, restaurantID, menuID int64, foodName string) (MenuItem, error) {
	var m MenuItem
	err := s.pool.QueryRow(ctx, `
		SELECT menu_id, restaurant_id, food_name, food_price, category
		FROM menu_table
		WHERE restaurant_id = $1 AND menu_id = $2 AND food_name = $3`,
		restaurantID, menuID, foodName).
		Scan(&m.MenuID, &m.RestaurantID, &m.FoodName, &m.FoodPrice, &m.Category)
	return m, err
}
