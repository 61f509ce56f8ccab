package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/config"
	"github.com/kkk1998sss/webinar-sub002/internal/domain"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/api"
	pg "github.com/kkk1998sss/webinar-sub002/internal/infra/db/postgres"
	red "github.com/kkk1998sss/webinar-sub002/internal/infra/redis"
)

// Seeds a local database with demo users and webinars and prints a session
// token per user for calling the API by hand.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "truncate all tables and cached webinars first")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.Migrate(cfg.Database.URL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	webinars := []*model.Webinar{
		{ID: "web-intro", Title: "Intro to Options Trading", Price: 0, IsPaid: false},
		{ID: "web-masterclass", Title: "Portfolio Masterclass", Price: 99_900, IsPaid: true},
		{ID: "web-live-qa", Title: "Live Q&A", Price: 19_900, IsPaid: true},
	}

	if *reset {
		log.Println("Wiping all existing database data...")
		if _, err := pool.Exec(ctx, `
			TRUNCATE
				webhook_events, webinar_grants, subscriptions, orders, webinars, users
			RESTART IDENTITY CASCADE;
		`); err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}
		if cfg.Redis.URL != "" {
			rc, err := red.NewClient(ctx, cfg.Redis)
			if err != nil {
				log.Fatalf("redis: %v", err)
			}
			keys := make([]string, 0, len(webinars))
			for _, w := range webinars {
				keys = append(keys, "webinar:id:"+w.ID)
			}
			if err := rc.Del(ctx, keys...); err != nil {
				log.Printf("failed to clear cached webinars: %v", err)
			}
			_ = rc.Close()
		}
	}

	repo := pg.NewPostgresUserRepo(pool)
	for _, w := range webinars {
		if err := repo.SaveWebinar(ctx, nil, w); err != nil {
			log.Fatalf("save webinar %q: %v", w.ID, err)
		}
		fmt.Printf("webinar: %s (%s, price=%d)\n", w.ID, w.Title, w.Price)
	}

	auth := api.NewAuthManager(cfg.Session.JWTSecret, cfg.Session.CookieName, cfg.Session.TTL)
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		u, err := repo.FindByEmail(ctx, nil, email)
		if errors.Is(err, domain.ErrNotFound) {
			u, err = model.NewUser("", email, "")
			if err == nil {
				err = repo.Save(ctx, nil, u)
			}
		}
		if err != nil {
			log.Fatalf("user %s: %v", email, err)
		}
		token, err := auth.Mint(u.ID, u.Email)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("user: %s id=%s\n  Authorization: Bearer %s\n", u.Email, u.ID, token)
	}

	fmt.Println("Seeding complete.")
}
