package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/perp"
)

func main() {
	godotenv.Load()

	tokenID := flag.String("token", "", "LP token id; empty lists the latest fills")
	market := flag.String("market", "", "perp market filter, e.g. ETH-USD")
	limit := flag.Int("limit", 100, "max fills when no token is given")
	flag.Parse()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/lpbot.db"
	}
	db, err := database.New(dbPath)
	if err != nil {
		fmt.Println("Error opening database:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	var trades []database.PerpTrade
	if *tokenID != "" {
		trades, err = db.PerpTradesByToken(ctx, *tokenID, *market)
	} else {
		trades, err = db.ListPerpTrades(ctx, database.PerpTradeFilter{Market: *market, Limit: *limit})
	}
	if err != nil {
		fmt.Println("Error fetching trades:", err)
		os.Exit(1)
	}

	fmt.Printf("📊 HEDGE FILLS - Total: %d\n\n", len(trades))

	// Group fills by LP token so each hedge reads as open/close pairs
	byToken := map[string][]database.PerpTrade{}
	var order []string
	for _, t := range trades {
		if _, ok := byToken[t.TokenID]; !ok {
			order = append(order, t.TokenID)
		}
		byToken[t.TokenID] = append(byToken[t.TokenID], t)
	}

	for _, id := range order {
		fills := byToken[id]
		fmt.Printf("━━━ Token %s ━━━\n", id)
		for _, t := range fills {
			ts := time.UnixMilli(t.CreatedTime).Format("2006-01-02 15:04:05")
			fmt.Printf("  %s  %-4s %s @ %s  fee %s  (%s)\n",
				ts, t.Side, t.Qty.String(), t.Price.StringFixed(2), t.Fee.StringFixed(4), t.Market)
		}

		s := perp.Summarize(fills)
		if s.Flat {
			fmt.Printf("  ✅ Flat | Realized: %s | Fees: %s\n\n", s.RealizedPnL.StringFixed(4), s.Fees.StringFixed(4))
		} else {
			fmt.Printf("  ⏳ Open | Net qty: %s | Cash: %s | Fees: %s\n\n", s.NetQty.String(), s.Cash.StringFixed(4), s.Fees.StringFixed(4))
		}
	}
}
