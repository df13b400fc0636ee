package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/database"
)

func main() {
	godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_PATH")
	}
	if dsn == "" {
		fmt.Println("❌ DATABASE_URL or DATABASE_PATH not set")
		os.Exit(1)
	}

	fmt.Println("🔌 Connecting and migrating...")
	db, err := database.New(dsn)
	if err != nil {
		fmt.Printf("❌ Connection error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	fmt.Println("✅ Schema ready (positions, perp_trades)")

	ctx := context.Background()

	fmt.Println("\n📊 Current rows:")
	positions, err := db.ListPositions(ctx, 500)
	if err != nil {
		fmt.Printf("❌ Query error: %v\n", err)
		os.Exit(1)
	}
	active := 0
	for _, p := range positions {
		if p.Status == database.StatusActive {
			active++
		}
	}
	fmt.Printf("  - positions: %d (%d active)\n", len(positions), active)
	if active > 1 {
		fmt.Println("  ⚠️ More than one active position; the bot only tracks the newest")
	}

	fills, err := db.ListPerpTrades(ctx, database.PerpTradeFilter{Limit: 500})
	if err == nil {
		fmt.Printf("  - perp_trades: %d\n", len(fills))
	}

	// Round-trip a throwaway record
	fmt.Println("\n🧪 Testing INSERT / DELETE...")
	testID := fmt.Sprintf("9%d", time.Now().UnixNano()%1_000_000_000)
	err = db.InsertPosition(ctx, &database.Position{
		TokenID:     testID,
		PoolAddress: "0x0000000000000000000000000000000000000000",
		Status:      database.StatusClosed,
		NetValueIn1: decimal.Zero,
	})
	if err != nil {
		fmt.Printf("❌ Insert error: %v\n", err)
		os.Exit(1)
	}
	n, err := db.DeletePosition(ctx, testID)
	if err != nil {
		fmt.Printf("⚠️ Delete error: %v\n", err)
	} else {
		fmt.Printf("✅ Inserted and removed test row %s (%d deleted)\n", testID, n)
	}

	fmt.Println("\n✅ DATABASE READY")
}
