package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dir := flag.String("dir", "migrations", "directory containing migration files")
	steps := flag.Int("steps", 0, "number of steps for the up/down commands (0 means all)")
	flag.Parse()

	action := flag.Arg(0)
	if action == "" {
		action = "up"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	// golang-migrate selects the driver by URL scheme.
	dbURL = strings.Replace(dbURL, "postgres://", "pgx5://", 1)
	dbURL = strings.Replace(dbURL, "postgresql://", "pgx5://", 1)

	m, err := migrate.New("file://"+*dir, dbURL)
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("close: source=%v db=%v", srcErr, dbErr)
		}
	}()

	switch action {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "drop":
		err = m.Drop()
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
			log.Fatalf("version: %v", verErr)
		}
		log.Printf("version=%d dirty=%v", version, dirty)
		return
	default:
		log.Fatalf("unknown command %q (expected up, down, drop or version)", action)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("%s: %v", action, err)
	}
	log.Printf("%s: done", action)
}
