package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	seedCoupons(db)

	log.Println("Seeding completed successfully!")
}

type productSeed struct {
	title      string
	hsnCode    string
	unitPrice  int64 // paise
	discount   int64 // paise per unit
	gstRateBps int64
	stock      int
}

func seedProducts(db *sql.DB) {
	products := []productSeed{
		{"Basmati Rice 5kg", "1006", 64900, 0, 500, 120},
		{"Cotton Kurta", "6203", 129900, 10000, 1200, 45},
		{"Bluetooth Earbuds", "8518", 249900, 0, 1800, 80},
		{"Stainless Steel Bottle 1L", "7323", 79900, 5000, 1800, 200},
		{"Ayurvedic Face Cream", "3304", 49900, 0, 2800, 60},
	}
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (id, title, hsn_code, unit_price, discount, gst_rate_bps, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING`,
			uuid.NewString(), p.title, p.hsnCode, p.unitPrice, p.discount, p.gstRateBps, p.stock)
		if err != nil {
			log.Fatalf("Failed to seed product %q: %v", p.title, err)
		}
	}
	log.Printf("Seeded %d products", len(products))
}

func seedCoupons(db *sql.DB) {
	coupons := []struct {
		code        string
		kind        string
		value       int64
		percentBps  int64
		maxDiscount int64
		minOrder    int64
		usageLimit  sql.NullInt32
	}{
		{"WELCOME10", "percent", 0, 1000, 20000, 50000, sql.NullInt32{Int32: 1000, Valid: true}},
		{"FLAT50", "fixed", 5000, 0, 0, 100000, sql.NullInt32{}},
		{"FESTIVE20", "percent", 0, 2000, 50000, 200000, sql.NullInt32{Int32: 500, Valid: true}},
	}
	for _, c := range coupons {
		_, err := db.Exec(`
			INSERT INTO coupons (code, kind, value, percent_bps, max_discount, min_order, usage_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO NOTHING`,
			c.code, c.kind, c.value, c.percentBps, c.maxDiscount, c.minOrder, c.usageLimit)
		if err != nil {
			log.Fatalf("Failed to seed coupon %q: %v", c.code, err)
		}
	}
	log.Printf("Seeded %d coupons", len(coupons))
}
