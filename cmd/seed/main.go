package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/config"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/logger"
	"github.com/tableside/api/internal/router"
	"github.com/tableside/api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// demoMenu is inserted only when the menu is empty.
var demoMenu = []struct {
	category string
	items    []service.MenuItemInput
}{
	{"主餐", []service.MenuItemInput{
		{Name: "牛肉麵", Price: 180, Description: "紅燒湯頭"},
		{Name: "滷肉飯", Price: 60},
		{Name: "雞腿便當", Price: 120},
	}},
	{"小菜", []service.MenuItemInput{
		{Name: "燙青菜", Price: 50},
		{Name: "滷蛋", Price: 15},
	}},
	{"飲料", []service.MenuItemInput{
		{Name: "紅茶", Price: 30},
		{Name: "豆漿", Price: 35},
	}},
}

func main() {
	adminEmail := flag.String("admin-email", "admin@tableside.local", "Admin email address")
	kitchenEmail := flag.String("kitchen-email", "kitchen@tableside.local", "Kitchen email address")
	password := flag.String("password", "password123", "Password for both seeded users")
	tables := flag.Int("tables", 10, "Number of tables")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")

	if *password == "password123" {
		log.Warn("using default password 'password123'; change it before going live")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("ping database")
	}

	queries := database.New(pool)
	if err := seedUser(ctx, queries, *adminEmail, *password, "Admin", enum.UserRoleAdmin); err != nil {
		log.WithError(err).Fatal("seed admin")
	}
	if err := seedUser(ctx, queries, *kitchenEmail, *password, "Kitchen", enum.UserRoleKitchen); err != nil {
		log.WithError(err).Fatal("seed kitchen")
	}

	// No broker: nothing is listening while seeding.
	svc := router.NewServices(pool, queries, nil, nil, time.UTC)

	if _, err := svc.Tables.SetCount(ctx, *tables); err != nil {
		log.WithError(err).Fatal("seed tables")
	}
	log.WithField("count", *tables).Info("tables ready")

	if err := seedMenu(ctx, svc.Menu); err != nil {
		log.WithError(err).Fatal("seed menu")
	}

	log.Info("seed completed")
}

// seedUser creates the user unless the email is already taken.
func seedUser(ctx context.Context, q *database.Queries, email, password, fullName, role string) error {
	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		log.WithField("email", email).WithField("id", existing.ID).Info("user exists, skipping")
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u, err := q.CreateUser(ctx, database.CreateUserParams{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		Role:           role,
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	log.WithFields(log.Fields{"email": email, "id": u.ID, "role": role}).Info("created user")
	return nil
}

func seedMenu(ctx context.Context, menu *service.MenuService) error {
	current, err := menu.Menu(ctx)
	if err != nil {
		return err
	}
	if len(current.Categories) > 0 {
		log.Info("menu not empty, skipping")
		return nil
	}

	for _, group := range demoMenu {
		cat, err := menu.CreateCategory(ctx, group.category)
		if err != nil {
			return fmt.Errorf("create category %q: %w", group.category, err)
		}
		for _, it := range group.items {
			it.CategoryID = cat.ID
			if _, err := menu.CreateMenuItem(ctx, it); err != nil {
				return fmt.Errorf("create menu item %q: %w", it.Name, err)
			}
		}
	}
	log.WithField("categories", len(demoMenu)).Info("demo menu created")
	return nil
}
