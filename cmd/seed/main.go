package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qr-efficient/api/internal/cart"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
	"github.com/qr-efficient/api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	demo := flag.Bool("demo", false, "Seed a demo visit with an open order")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@qr-efficient.dev"
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}
	if *name == "" {
		*name = "Admin"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://qr:qr@localhost:5432/qr_efficient?sslmode=disable"
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction (all base data or none)
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	q := database.New(tx)

	restaurantID, err := seedRestaurant(ctx, tx)
	if err != nil {
		log.Fatalf("Failed to seed restaurant: %v", err)
	}

	adminID, waiterID, err := seedUsers(ctx, tx, q, restaurantID, *email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	tableID, err := seedTables(ctx, q, restaurantID)
	if err != nil {
		log.Fatalf("Failed to seed tables: %v", err)
	}

	items, err := seedMenu(ctx, q, restaurantID)
	if err != nil {
		log.Fatalf("Failed to seed menu: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Restaurant ID: %s", restaurantID)
	log.Printf("Admin ID: %s", adminID)

	if *demo {
		if err := seedDemoVisit(ctx, pool, tableID, waiterID, items); err != nil {
			log.Fatalf("Failed to seed demo visit: %v", err)
		}
	}
}

// seedRestaurant creates the initial restaurant if it doesn't exist.
func seedRestaurant(ctx context.Context, tx pgx.Tx) (uuid.UUID, error) {
	const restaurantName = "La Mesa Eficiente"

	var existingID uuid.UUID
	checkSQL := `SELECT id FROM restaurants WHERE name = $1 LIMIT 1`
	err := tx.QueryRow(ctx, checkSQL, restaurantName).Scan(&existingID)
	if err == nil {
		log.Printf("Restaurant '%s' already exists (ID: %s), skipping", restaurantName, existingID)
		return existingID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("check restaurant: %w", err)
	}

	var newID uuid.UUID
	insertSQL := `INSERT INTO restaurants (name) VALUES ($1) RETURNING id`
	if err := tx.QueryRow(ctx, insertSQL, restaurantName).Scan(&newID); err != nil {
		return uuid.Nil, fmt.Errorf("create restaurant: %w", err)
	}
	log.Printf("Created restaurant '%s'", restaurantName)
	return newID, nil
}

// seedUsers creates the admin account plus one demo waiter.
func seedUsers(ctx context.Context, tx pgx.Tx, q *database.Queries, restaurantID uuid.UUID, email, password, name string) (uuid.UUID, uuid.UUID, error) {
	adminID, err := seedUser(ctx, tx, q, restaurantID, email, password, name, enum.UserRoleAdmin)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	waiterID, err := seedUser(ctx, tx, q, restaurantID, "waiter@qr-efficient.dev", password, "Demo Waiter", enum.UserRoleWaiter)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return adminID, waiterID, nil
}

func seedUser(ctx context.Context, tx pgx.Tx, q *database.Queries, restaurantID uuid.UUID, email, password, name, role string) (uuid.UUID, error) {
	var existingID uuid.UUID
	checkSQL := `SELECT id FROM users WHERE email = $1 LIMIT 1`
	err := tx.QueryRow(ctx, checkSQL, email).Scan(&existingID)
	if err == nil {
		log.Printf("User '%s' already exists (ID: %s), skipping", email, existingID)
		return existingID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("check user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := q.CreateUser(ctx, database.CreateUserParams{
		RestaurantID: restaurantID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     name,
		Role:         role,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	log.Printf("Created %s '%s'", role, email)
	return user.ID, nil
}

// seedTables creates eight numbered tables and returns the first one.
func seedTables(ctx context.Context, q *database.Queries, restaurantID uuid.UUID) (uuid.UUID, error) {
	var first uuid.UUID
	for n := int32(1); n <= 8; n++ {
		table, err := q.CreateTable(ctx, database.CreateTableParams{
			RestaurantID: restaurantID,
			Number:       n,
			Label:        fmt.Sprintf("Table %d", n),
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("create table %d: %w", n, err)
		}
		if n == 1 {
			first = table.ID
		}
	}
	log.Println("Created 8 tables")
	return first, nil
}

// seedMenu creates the demo categories and menu items.
func seedMenu(ctx context.Context, q *database.Queries, restaurantID uuid.UUID) ([]database.MenuItem, error) {
	menu := map[string][]struct {
		description string
		price       string
	}{
		"Starters": {
			{"Empanada de carne", "5.00"},
			{"Provoleta", "7.50"},
		},
		"Mains": {
			{"Milanesa napolitana", "14.00"},
			{"Bife de chorizo", "19.50"},
		},
		"Drinks": {
			{"Limonada", "3.50"},
			{"Copa de malbec", "6.00"},
		},
	}

	var items []database.MenuItem
	for categoryName, entries := range menu {
		category, err := q.CreateCategory(ctx, categoryName)
		if err != nil {
			return nil, fmt.Errorf("create category %s: %w", categoryName, err)
		}
		for _, e := range entries {
			var price pgtype.Numeric
			if err := price.Scan(e.price); err != nil {
				return nil, fmt.Errorf("parse price %s: %w", e.price, err)
			}
			item, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
				RestaurantID: restaurantID,
				CategoryID:   category.ID,
				Description:  e.description,
				Price:        price,
			})
			if err != nil {
				return nil, fmt.Errorf("create menu item %s: %w", e.description, err)
			}
			items = append(items, item)
		}
	}
	log.Printf("Created %d menu items", len(items))
	return items, nil
}

// seedDemoVisit opens a visit on the first table and submits an order
// through the same cart and service path the API uses.
func seedDemoVisit(ctx context.Context, pool *pgxpool.Pool, tableID, waiterID uuid.UUID, items []database.MenuItem) error {
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})

	visit, err := tableService.AssignWaiter(ctx, tableID, waiterID, waiterID)
	if err != nil {
		return fmt.Errorf("assign waiter: %w", err)
	}

	c := cart.New()
	c.Add(items[0])
	c.Add(items[0])
	c.Add(items[1])

	order, err := orderService.Create(ctx, c.Submission(visit.Visit.ID, uuid.New(), "sin sal"))
	if err != nil {
		return fmt.Errorf("create demo order: %w", err)
	}

	log.Printf("Demo visit %s opened with order %s", visit.Visit.ID, order.Order.ID)
	return nil
}
