package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/caliothemes/iGPTsave-sub002/internal/config"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/domain/ports/repository"
	pg "github.com/caliothemes/iGPTsave-sub002/internal/infra/db/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS credit_accounts (
    email       TEXT PRIMARY KEY,
    free_units  BIGINT NOT NULL DEFAULT 0 CHECK (free_units >= 0),
    paid_units  BIGINT NOT NULL DEFAULT 0 CHECK (paid_units >= 0),
    plan        TEXT NOT NULL DEFAULT 'none',
    unlimited   BOOLEAN NOT NULL DEFAULT FALSE,
    yearly      BOOLEAN NOT NULL DEFAULT FALSE,
    role        TEXT NOT NULL DEFAULT 'none',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	fmt.Println("schema ready")

	repo := pg.NewPostgresCreditAccountRepo(pool)

	// Demo accounts for local testing: a few free credits, one admin.
	seed := []*model.CreditAccount{
		{Email: "demo@example.com", FreeUnits: 10, Plan: model.PlanNone, Role: model.RoleNone},
		{Email: "pro@example.com", FreeUnits: 10, PaidUnits: 300, Plan: model.PlanPro, Role: model.RoleNone},
		{Email: "admin@example.com", Plan: model.PlanNone, Role: model.RoleAdmin},
	}
	for _, acc := range seed {
		if _, err := repo.FindByEmail(ctx, repository.NoTX, acc.Email); err == nil {
			fmt.Printf("exists: %s\n", acc.Email)
			continue
		}
		if err := repo.Save(ctx, repository.NoTX, acc); err != nil {
			log.Fatalf("seed %s: %v", acc.Email, err)
		}
		fmt.Printf("seeded: %s (free=%d, paid=%d, role=%s)\n", acc.Email, acc.FreeUnits, acc.PaidUnits, acc.Role)
	}

	fmt.Println("seeding complete")
}
