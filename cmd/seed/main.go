package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/JivkoJelev91/online-shop/internal/config"
	"github.com/JivkoJelev91/online-shop/internal/db"
)

type seedProduct struct {
	Name        string
	Description string
	Price       string
	Stock       int
}

var catalog = []seedProduct{
	{"Wireless Headphones", "High quality wireless headphones with noise cancellation.", "99.99", 10},
	{"Smart Watch", "Track your fitness and notifications in style.", "149.99", 5},
	{"Bluetooth Speaker", "Portable and powerful sound for any occasion.", "59.99", 20},
	{"Gaming Mouse", "Precision and comfort for gamers.", "39.99", 15},
	{"4K Monitor", "Ultra HD display for work and play.", "299.99", 7},
	{"Mechanical Keyboard", "Tactile keys and RGB lighting.", "89.99", 12},
	{"Smartphone", "Latest model with stunning display and camera.", "699.99", 8},
	{"Tablet", "Portable and powerful for work and play.", "399.99", 6},
	{"Fitness Tracker", "Track your steps, sleep, and more.", "49.99", 18},
	{"Drone", "Capture stunning aerial footage.", "499.99", 3},
	{"VR Headset", "Immersive virtual reality experience.", "249.99", 4},
	{"Portable SSD", "Fast and reliable storage on the go.", "129.99", 14},
}

// Product ids are derived from the product name, so re-running the seed
// updates rows in place instead of inserting duplicates.
var seedNamespace = uuid.MustParse("8c0efec1-4f4f-4c95-a6c6-6d6f2e6c2a01")

func main() {
	cfg := config.Load()
	logger := logrus.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.WithError(err).Fatal("run migrations")
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	for _, p := range catalog {
		id := uuid.NewSHA1(seedNamespace, []byte(p.Name)).String()
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, description, price, stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				updated_at = now()
		`, id, p.Name, p.Description, decimal.RequireFromString(p.Price), p.Stock)
		if err != nil {
			logger.WithError(err).WithField("product", p.Name).Fatal("seed product")
		}
	}

	logger.WithField("products", len(catalog)).Info("catalog seeded")
}
