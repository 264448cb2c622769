package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tinytrack.org/internal/migrate"
)

func main() {
	var (
		dsn           = flag.String("dsn", os.Getenv("TINYTRACK_DB_DSN"), "PostgreSQL DSN (defaults to TINYTRACK_DB_DSN)")
		migrationsDir = flag.String("migrations", "migrations/sql", "directory with *.up.sql / *.down.sql files")
		seedsDir      = flag.String("seeds", "migrations/seeds", "directory with seed *.sql files")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("dsn is required: pass -dsn or set TINYTRACK_DB_DSN")
	}
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	mgr := migrate.NewManager(db, *migrationsDir, *seedsDir)

	switch cmd {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := mgr.Down(ctx); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("last migration rolled back")
	case "seed":
		if err := mgr.Seed(ctx); err != nil {
			log.Fatalf("seed: %v", err)
		}
		log.Println("seeds applied")
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command %q: want up, down, seed or status", cmd)
	}
}
