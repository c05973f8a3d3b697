package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/plateful/plateful/internal/store"
)

const maxNearbyResults = 10

// RestaurantStore defines the DB methods needed by the restaurant service.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id int64) (store.Restaurant, error)
	GetAddress(ctx context.Context, restaurantID int64) (store.Address, error)
	ListRestaurantsWithAddress(ctx context.Context) ([]store.RestaurantWithAddress, error)
	ListMenu(ctx context.Context, restaurantID int64) ([]store.MenuItem, error)
}

type RestaurantService struct {
	store RestaurantStore
}

func NewRestaurantService(s RestaurantStore) *RestaurantService {
	return &RestaurantService{store: s}
}

// NearbyRestaurant is a restaurant with its distance from the query point.
type NearbyRestaurant struct {
	Restaurant store.Restaurant
	Address    store.Address
	DistanceKM float64
}

// Nearby returns restaurants within radiusKM of the point, nearest first,
// capped at maxNearbyResults.
func (s *RestaurantService) Nearby(ctx context.Context, lat, lng, radiusKM float64) ([]NearbyRestaurant, error) {
	all, err := s.store.ListRestaurantsWithAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}

	var nearby []NearbyRestaurant
	for _, rw := range all {
		d := haversineKM(lat, lng, rw.Address.Latitude, rw.Address.Longitude)
		if d < radiusKM {
			nearby = append(nearby, NearbyRestaurant{
				Restaurant: rw.Restaurant,
				Address:    rw.Address,
				DistanceKM: math.Round(d*100) / 100,
			})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKM < nearby[j].DistanceKM
	})
	if len(nearby) > maxNearbyResults {
		nearby = nearby[:maxNearbyResults]
	}
	return nearby, nil
}

func (s *RestaurantService) Get(ctx context.Context, id int64) (*store.Restaurant, *store.Address, error) {
	restaurant, err := s.store.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrRestaurantNotFound
		}
		return nil, nil, fmt.Errorf("get restaurant: %w", err)
	}
	address, err := s.store.GetAddress(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &restaurant, nil, nil
		}
		return nil, nil, fmt.Errorf("get address: %w", err)
	}
	return &restaurant, &address, nil
}

func (s *RestaurantService) Menu(ctx context.Context, restaurantID int64) ([]store.MenuItem, error) {
	if _, err := s.store.GetRestaurant(ctx, restaurantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	menu, err := s.store.ListMenu(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return menu, nil
}

// haversineKM is the great-circle distance between two points in kilometers.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371

	dlat := toRadians(lat2 - lat1)
	dlon := toRadians(lon2 - lon1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
