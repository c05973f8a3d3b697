// Command plateful is a terminal client for the ordering API: discover
// restaurants, build a cart, check out, and follow order status.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/plateful/plateful/internal/client"
	"github.com/plateful/plateful/internal/localstore"
	"github.com/plateful/plateful/internal/payment"
	"github.com/plateful/plateful/internal/session"
)

const defaultAPIURL = "http://localhost:8080"

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	store, err := localstore.Default()
	if err != nil {
		log.Fatalf("local state: %v", err)
	}
	state, err := store.Load()
	if err != nil {
		log.Fatalf("local state: %v", err)
	}

	apiURL := os.Getenv("PLATEFUL_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	api := client.New(apiURL, client.WithToken(state.Token))

	app := &app{api: api, store: store, state: state}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "signup":
		err = app.signUp(args)
	case "signin":
		err = app.signIn(args)
	case "signout":
		err = app.signOut()
	case "nearby":
		err = app.nearby(args)
	case "menu":
		err = app.menu(args)
	case "cart":
		err = app.cart(args)
	case "checkout":
		err = app.checkout(args)
	case "orders":
		err = app.orders()
	case "watch":
		err = app.watch()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: plateful <command> [flags]

commands:
  signup    create an account (-name -phone -password [-email])
  signin    sign in (-phone -password)
  signout   forget the saved token
  nearby    list restaurants near a point (-lat -lng [-radius])
  menu      show a restaurant's menu (-restaurant)
  cart      show or edit the cart (-restaurant [-add item] [-remove item] [-discard])
  checkout  pay for the cart (-restaurant)
  orders    list placed orders
  watch     follow order status updates

items are written as menuID:FoodName, e.g. 7:Burger`)
}

type app struct {
	api   *client.Client
	store *localstore.Store
	state *localstore.State
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func (a *app) requirePhone() (string, error) {
	if a.state.Phone == "" || a.state.Token == "" {
		return "", fmt.Errorf("not signed in (run: plateful signin)")
	}
	return a.state.Phone, nil
}

func (a *app) saveToken(tok *client.Token) error {
	a.state.Token = tok.AccessToken
	a.state.Phone = tok.PhoneNumber
	return a.store.Save(a.state)
}

// --- Commands ---

func (a *app) signUp(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	phone := fs.String("phone", "", "Phone number (10 digits)")
	password := fs.String("password", "", "Password")
	email := fs.String("email", "", "Email (optional)")
	fs.Parse(args)

	if *name == "" || *phone == "" || *password == "" {
		return fmt.Errorf("-name, -phone and -password are required")
	}

	ctx, cancel := a.ctx()
	defer cancel()
	tok, err := a.api.SignUp(ctx, *name, *phone, *password, *email)
	if err != nil {
		return err
	}
	if err := a.saveToken(tok); err != nil {
		return err
	}
	fmt.Printf("Signed up as %s\n", tok.PhoneNumber)
	return nil
}

func (a *app) signIn(args []string) error {
	fs := flag.NewFlagSet("signin", flag.ExitOnError)
	phone := fs.String("phone", "", "Phone number")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	if *phone == "" || *password == "" {
		return fmt.Errorf("-phone and -password are required")
	}

	ctx, cancel := a.ctx()
	defer cancel()
	tok, err := a.api.SignIn(ctx, *phone, *password)
	if err != nil {
		return err
	}
	if err := a.saveToken(tok); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", tok.PhoneNumber)
	return nil
}

func (a *app) signOut() error {
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func (a *app) nearby(args []string) error {
	fs := flag.NewFlagSet("nearby", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude")
	lng := fs.Float64("lng", 0, "Longitude")
	radius := fs.Float64("radius", 25, "Radius in km")
	fs.Parse(args)

	// Fall back to the last saved location.
	if *lat == 0 && *lng == 0 {
		if a.state.LastLocation == nil {
			return fmt.Errorf("-lat and -lng are required (no saved location)")
		}
		*lat, *lng = a.state.LastLocation.Latitude, a.state.LastLocation.Longitude
	}

	ctx, cancel := a.ctx()
	defer cancel()
	restaurants, err := a.api.NearbyRestaurants(ctx, *lat, *lng, *radius)
	if err != nil {
		return err
	}

	a.state.LastLocation = &localstore.Location{Latitude: *lat, Longitude: *lng}
	if err := a.store.Save(a.state); err != nil {
		return err
	}

	if len(restaurants) == 0 {
		fmt.Println("No restaurants nearby")
		return nil
	}
	for _, r := range restaurants {
		dist := ""
		if r.DistanceKM != nil {
			dist = fmt.Sprintf("  %.2f km", *r.DistanceKM)
		}
		fmt.Printf("%4d  %-30s %-12s %s%s\n", r.ID, r.Name, r.Type, r.Ratings, dist)
	}
	return nil
}

func (a *app) menu(args []string) error {
	fs := flag.NewFlagSet("menu", flag.ExitOnError)
	restaurantID := fs.Int64("restaurant", 0, "Restaurant ID")
	fs.Parse(args)
	if *restaurantID == 0 {
		return fmt.Errorf("-restaurant is required")
	}

	ctx, cancel := a.ctx()
	defer cancel()
	menu, err := a.api.RestaurantMenu(ctx, *restaurantID)
	if err != nil {
		return err
	}
	for _, m := range menu {
		fmt.Printf("%4d  %-30s %8s  %s\n", m.MenuID, m.FoodName, m.FoodPrice, m.Category)
	}
	return nil
}

func (a *app) cart(args []string) error {
	fs := flag.NewFlagSet("cart", flag.ExitOnError)
	restaurantID := fs.Int64("restaurant", 0, "Restaurant ID")
	add := fs.String("add", "", "Add one of an item (menuID:FoodName)")
	remove := fs.String("remove", "", "Remove one of an item (menuID:FoodName)")
	discard := fs.Bool("discard", false, "Delete the cart")
	fs.Parse(args)
	if *restaurantID == 0 {
		return fmt.Errorf("-restaurant is required")
	}

	phone, err := a.requirePhone()
	if err != nil {
		return err
	}

	ctx, cancel := a.ctx()
	defer cancel()

	sess := session.New(a.api, phone, *restaurantID)
	if err := sess.Open(ctx); err != nil {
		return err
	}

	if *discard {
		if err := sess.Discard(ctx); err != nil {
			return err
		}
		fmt.Println("Cart discarded")
		return nil
	}

	if *add != "" {
		menuID, foodName, err := parseItem(*add)
		if err != nil {
			return err
		}
		qty, err := sess.AdjustItem(ctx, menuID, foodName, 1)
		if err != nil {
			return err
		}
		fmt.Printf("%s x%d\n", foodName, qty)
	}
	if *remove != "" {
		menuID, foodName, err := parseItem(*remove)
		if err != nil {
			return err
		}
		qty, err := sess.AdjustItem(ctx, menuID, foodName, -1)
		if err != nil {
			return err
		}
		fmt.Printf("%s x%d\n", foodName, qty)
	}

	printCart(sess.Cart())
	return nil
}

func (a *app) checkout(args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	restaurantID := fs.Int64("restaurant", 0, "Restaurant ID")
	fs.Parse(args)
	if *restaurantID == 0 {
		return fmt.Errorf("-restaurant is required")
	}

	phone, err := a.requirePhone()
	if err != nil {
		return err
	}

	ctx, cancel := a.ctx()
	defer cancel()

	sess := session.New(a.api, phone, *restaurantID)
	if err := sess.Open(ctx); err != nil {
		return err
	}

	total, err := sess.Total()
	if err != nil {
		return err
	}
	fmt.Printf("Charging %s (incl. %s service fee)\n", total.StringFixed(2), session.ServiceFee.StringFixed(2))

	placed, err := sess.Checkout(ctx, payment.NewIntentAuthorizer(a.api))
	if err != nil {
		return err
	}
	fmt.Printf("Order %s placed, status %s\n", placed.OrderNumber, placed.Status)
	return nil
}

func (a *app) orders() error {
	if _, err := a.requirePhone(); err != nil {
		return err
	}

	ctx, cancel := a.ctx()
	defer cancel()
	orders, err := a.api.ListOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders yet")
		return nil
	}
	for _, o := range orders {
		fmt.Printf("%s  %-20s %-10s %8s  %s\n",
			o.OrderNumber, o.RestaurantName, o.Status, o.Total, o.DueDate.Format("Jan 2 15:04"))
	}
	return nil
}

func (a *app) watch() error {
	if _, err := a.requirePhone(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	events, err := a.api.WatchOrders(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Watching order updates (Ctrl-C to stop)")
	for ev := range events {
		if ev.Type != "order.status" {
			continue
		}
		var update client.OrderStatusUpdate
		if err := json.Unmarshal(ev.Payload, &update); err != nil {
			continue
		}
		fmt.Printf("%s  order %s at %s is now %s\n",
			time.Now().Format("15:04:05"), update.OrderNumber, update.RestaurantName, update.Status)
	}
	return nil
}

// --- Helpers ---

func parseItem(spec string) (int64, string, error) {
	id, name, ok := strings.Cut(spec, ":")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("invalid item %q, want menuID:FoodName", spec)
	}
	menuID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid menu ID in %q", spec)
	}
	return menuID, name, nil
}

func printCart(cart *client.Cart) {
	if cart == nil || cart.ItemsCount == 0 {
		fmt.Println("Cart is empty")
		return
	}
	fmt.Printf("Cart %s at %s:\n", cart.OrderNumber, cart.RestaurantName)
	for _, it := range cart.FoodItems {
		fmt.Printf("  %2dx %-30s %8s\n", it.Quantity, it.FoodName, it.LineTotal)
	}
	fmt.Printf("  subtotal %s  taxes %s\n", cart.Subtotal, cart.Taxes)
}
