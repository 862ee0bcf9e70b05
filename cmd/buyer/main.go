package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"foodrescue/internal/cart"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

const usage = `usage: buyer [flags] <command> [args]

commands:
  add <food_id>            (price and restaurant from the catalog)
  set <food_id> <quantity>
  rm <food_id>
  clear
  show
  checkout [restaurant_id] [notes]
                           (without restaurant_id every restaurant in turn)
  pay <order_id>
  status <order_id>
  cancel <order_id>
`

func main() {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	apiURL := flag.String("api", getenv("FOODRESCUE_API", "http://localhost:8080"), "API base URL")
	token := flag.String("token", os.Getenv("FOODRESCUE_TOKEN"), "bearer token from the auth service")
	cartFile := flag.String("cart", getenv("CART_FILE", filepath.Join(home, ".foodrescue", "cart.json")), "cart file")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := log.New("buyer")
	store := cart.NewStore(cart.NewFilePersister(*cartFile), logger)
	client := cart.NewClient(*apiURL, *token, *timeout)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, store, client, args); err != nil {
		var apiErr *cart.APIError
		if errors.As(err, &apiErr) && apiErr.Retryable() {
			fmt.Fprintln(os.Stderr, "payment service is busy, try again in a moment")
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store *cart.Store, client *cart.Client, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		if len(rest) != 1 {
			return errors.New("add needs <food_id>")
		}
		foodID, err := parseID(rest[0])
		if err != nil {
			return err
		}
		//価格はカタログの今の値。注文時にもう一度サーバーで確定する
		f, err := client.GetFood(ctx, foodID)
		if err != nil {
			return err
		}
		if err := store.AddItem(f.CartFood(), f.Price); err != nil {
			return err
		}
		return show(store)

	case "set":
		if len(rest) != 2 {
			return errors.New("set needs <food_id> <quantity>")
		}
		foodID, err := parseID(rest[0])
		if err != nil {
			return err
		}
		if err := store.SetQuantityString(foodID, rest[1]); err != nil {
			return err
		}
		return show(store)

	case "rm":
		if len(rest) != 1 {
			return errors.New("rm needs <food_id>")
		}
		foodID, err := parseID(rest[0])
		if err != nil {
			return err
		}
		if err := store.RemoveItem(foodID); err != nil {
			return err
		}
		return show(store)

	case "clear":
		return store.Clear()

	case "show":
		return show(store)

	case "checkout":
		if store.IsEmpty() {
			return errors.New("cart is empty")
		}
		//1注文1店舗なので店舗ごとに出す
		var rids []int64
		if len(rest) > 0 {
			if rid, err := parseID(rest[0]); err == nil {
				rids = []int64{rid}
				rest = rest[1:]
			}
		}
		if rids == nil {
			for _, g := range store.GroupByRestaurant() {
				rids = append(rids, g.RestaurantID)
			}
		}
		notes := strings.Join(rest, " ")
		for _, rid := range rids {
			o, err := client.Checkout(ctx, store, rid, notes)
			if err != nil {
				return fmt.Errorf("restaurant %d: %w", rid, err)
			}
			fmt.Printf("order %d created for restaurant %d: %s total=%d\n", o.ID, rid, o.Status, o.Total)
		}
		return nil

	case "pay":
		id, err := oneID(rest)
		if err != nil {
			return err
		}
		s, err := client.InitiatePayment(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("pay %d at: %s\n", s.Amount, s.PaymentURL)
		return nil

	case "status":
		id, err := oneID(rest)
		if err != nil {
			return err
		}
		o, err := client.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("order %d: %s (payment %s)\n", o.ID, o.Status, o.PaymentStatus)
		if o.PickupCode != "" {
			fmt.Printf("pickup code: %s\n", o.PickupCode)
		}
		return nil

	case "cancel":
		id, err := oneID(rest)
		if err != nil {
			return err
		}
		o, err := client.CancelOrder(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("order %d: %s\n", o.ID, o.Status)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func show(store *cart.Store) error {
	groups := store.GroupByRestaurant()
	if len(groups) == 0 {
		fmt.Println("cart is empty")
		return nil
	}
	for _, g := range groups {
		fmt.Printf("restaurant %d (subtotal %d)\n", g.RestaurantID, g.Subtotal)
		for _, it := range g.Items {
			fmt.Printf("  food %d %s x%d @ %d\n", it.FoodID, it.Name, it.Quantity, it.UnitPrice)
		}
	}
	fmt.Printf("items=%d subtotal=%d\n", store.TotalItems(), store.Subtotal())
	return nil
}

func oneID(rest []string) (int64, error) {
	if len(rest) != 1 {
		return 0, errors.New("expected one <order_id>")
	}
	return parseID(rest[0])
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
