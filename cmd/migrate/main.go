package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/samirrijal/canvass/internal/pkg/config"
	"github.com/samirrijal/canvass/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status|version|redo> [args]")
	}

	cfg, err := config.Load("canvass-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("dialect: %v", err)
	}

	if err := goose.RunContext(ctx, os.Args[1], db, ".", os.Args[2:]...); err != nil {
		log.Fatalf("migrate %s: %v", os.Args[1], err)
	}
	log.Printf("migrate %s: done", os.Args[1])
}
