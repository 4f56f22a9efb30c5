// Command cancelall cancels every resting order across the configured
// product universe, ported from scripts/cancel_all_orders.py as a
// small, independent operator utility.
package main

import (
	"context"
	"log"
	"time"

	"github.com/chidi150c/currencycycle/internal/config"
	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/exchange"
	"github.com/shopspring/decimal"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	var client exchange.Client
	if cfg.Coinbase.BearerToken != "" || (cfg.Coinbase.KeyName != "" && cfg.Coinbase.PrivateKeyPEM != "") {
		client = exchange.NewCoinbase(cfg.Coinbase)
	} else {
		log.Println("no coinbase credentials configured; nothing to cancel against a paper client")
		client = exchange.NewPaper(map[currency.Currency]decimal.Decimal{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("cancelling orders")
	for _, p := range cfg.Products {
		if err := client.CancelAllOrders(ctx, p.ID); err != nil {
			log.Printf("cancel %s: %v", p.ID, err)
			continue
		}
		log.Printf("canceled orders for %s", p.ID)
	}
	log.Println("orders canceled")
}
