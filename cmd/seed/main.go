package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/config"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/enum"
	"github.com/snackattack-pos/api/internal/observability"
)

type seedUser struct {
	username string
	password string
	role     string
}

type seedProduct struct {
	name      string
	category  string
	price     decimal.Decimal
	cost      decimal.Decimal
	quantity  int32
	threshold int32
}

func main() {
	// CLI flags
	adminPassword := flag.String("admin-password", "", "Password for the admin account")
	skipMenu := flag.Bool("skip-menu", false, "Do not seed the default menu")
	migrate := flag.Bool("migrate", true, "Apply migrations before seeding")
	flag.Parse()

	// Fall back to environment variables
	if *adminPassword == "" {
		*adminPassword = os.Getenv("SEED_ADMIN_PASSWORD")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(os.Stdout, cfg.LogFormat, true)

	if *adminPassword == "" {
		*adminPassword = "Admin@12345"
		logger.Warn("using default admin password, change it immediately in production")
	}

	if *migrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("ping postgres", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Seed in one transaction so a failure leaves nothing half written.
	tx, err := pool.Begin(ctx)
	if err != nil {
		logger.Error("begin transaction", slog.Any("error", err))
		os.Exit(1)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)

	users := []seedUser{
		{"admin", *adminPassword, enum.UserRoleAdmin},
		{"staff", "Staff@12345", enum.UserRoleStaff},
		{"kitchen", "Kitchen@12345", enum.UserRoleKitchen},
	}
	for _, u := range users {
		if err := seedAccount(ctx, logger, q, u); err != nil {
			logger.Error("seed user", slog.String("username", u.username), slog.Any("error", err))
			os.Exit(1)
		}
	}

	if !*skipMenu {
		if err := seedMenu(ctx, logger, tx, q); err != nil {
			logger.Error("seed menu", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := seedSettings(ctx, logger, q); err != nil {
		logger.Error("seed settings", slog.Any("error", err))
		os.Exit(1)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("commit", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed completed successfully")
}

// seedAccount creates the user if the username is free.
func seedAccount(ctx context.Context, logger *slog.Logger, q *database.Queries, u seedUser) error {
	existing, err := q.GetUserByUsername(ctx, u.username)
	if err == nil {
		logger.Info("user already exists, skipping", slog.String("username", u.username), slog.Int64("id", existing.ID))
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check user: %w", err)
	}

	hash, err := auth.HashPassword(u.password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	created, err := q.CreateUser(ctx, database.CreateUserParams{
		Username:     u.username,
		PasswordHash: hash,
		Role:         u.role,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	logger.Info("created user", slog.String("username", created.Username), slog.String("role", created.Role))
	return nil
}

// seedMenu inserts the default menu when the products table is empty.
// Every product gets an inventory row and an "Initial stock" log entry.
func seedMenu(ctx context.Context, logger *slog.Logger, tx pgx.Tx, q *database.Queries) error {
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		logger.Info("products already present, skipping menu", slog.Int64("count", count))
		return nil
	}

	menu := defaultMenu()
	for _, p := range menu {
		product, err := q.CreateProduct(ctx, database.CreateProductParams{
			Name:       p.name,
			Category:   p.category,
			Price:      toNumeric(p.price),
			Cost:       toNumeric(p.cost),
			Active:     true,
			TrackStock: true,
		})
		if err != nil {
			return fmt.Errorf("insert product %q: %w", p.name, err)
		}
		if _, err := q.CreateInventory(ctx, database.CreateInventoryParams{
			ProductID:         product.ID,
			Quantity:          p.quantity,
			LowStockThreshold: p.threshold,
		}); err != nil {
			return fmt.Errorf("insert inventory %q: %w", p.name, err)
		}
		if _, err := q.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
			ProductID: product.ID,
			Delta:     p.quantity,
			Reason:    "Initial stock",
		}); err != nil {
			return fmt.Errorf("insert inventory log %q: %w", p.name, err)
		}
	}
	logger.Info("seeded menu", slog.Int("products", len(menu)))
	return nil
}

func defaultMenu() []seedProduct {
	d := decimal.NewFromInt
	item := func(name, category string, price, cost int64, qty int32) seedProduct {
		return seedProduct{name: name, category: category, price: d(price), cost: d(cost), quantity: qty, threshold: 5}
	}

	menu := []seedProduct{
		item("Hotdog Sandwich", "Food", 29, 15, 50),
		item("Hotdog Overload Cheese", "Food", 39, 20, 50),
		item("Cheesy Egg Sandwich", "Food", 30, 15, 50),
		item("Double Cheese Burger", "Food", 30, 18, 50),
		item("Beef Burger", "Food", 25, 15, 50),
		item("Cheesy Egg Burger", "Food", 45, 25, 50),
		item("Tofu Square", "Extras", 60, 30, 40),
		item("Fries (Regular)", "Extras", 50, 25, 60),
		item("Cheese Sticks (5pcs)", "Extras", 30, 15, 60),
	}

	// Drink sizes are separate products; cost is 55% of price.
	sizes := []string{"8oz", "12oz", "16oz", "22oz"}
	costRatio := decimal.RequireFromString("0.55")
	drinks := []struct {
		base   string
		prices [4]int64
	}{
		{"Chuckie Float", [4]int64{35, 45, 55, 65}},
		{"Coke Float", [4]int64{25, 35, 45, 65}},
		{"Fruity Soda", [4]int64{20, 30, 40, 50}},
		{"Dutchmill Float", [4]int64{35, 45, 55, 65}},
	}
	for _, drink := range drinks {
		for i, size := range sizes {
			price := d(drink.prices[i])
			menu = append(menu, seedProduct{
				name:      fmt.Sprintf("%s (%s)", drink.base, size),
				category:  "Drinks",
				price:     price,
				cost:      price.Mul(costRatio).Round(2),
				quantity:  80,
				threshold: 5,
			})
		}
	}
	return menu
}

// seedSettings writes the GCash defaults only when they were never set.
func seedSettings(ctx context.Context, logger *slog.Logger, q *database.Queries) error {
	defaults := []database.UpsertSettingParams{
		{Key: enum.SettingGCashNumber, Value: "09XXXXXXXXX"},
		{Key: enum.SettingGCashQR, Value: ""},
	}
	for _, s := range defaults {
		_, err := q.GetSetting(ctx, s.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check setting %s: %w", s.Key, err)
		}
		if err := q.UpsertSetting(ctx, s); err != nil {
			return fmt.Errorf("insert setting %s: %w", s.Key, err)
		}
		logger.Info("seeded setting", slog.String("key", s.Key))
	}
	return nil
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
