// Command generate_demo creates a demo database with sample public domain
// books and an administrator account.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/members"
)

const (
	defaultDemoDatabasePath = "./demo/demo.db"
	demoAdminEmail          = "admin@demo.local"
	demoAdminSecret         = "demo-admin"
)

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatalf("Failed to create demo directory: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	created, err := db.SeedCatalog(ctx, database.SampleCatalog())
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	log.Printf("Saved %d books", created)

	accounts := auth.NewService(members.NewRepository(db.DB), nil, config.Auth{BcryptCost: bcrypt.DefaultCost})
	admin, err := accounts.CreateAdministrator(ctx, auth.Registration{
		Name:    "Demo",
		Surname: "Administrator",
		Email:   demoAdminEmail,
		Secret:  demoAdminSecret,
	})
	if err != nil {
		log.Fatalf("Failed to create administrator: %v", err)
	}
	log.Printf("Created administrator %s (id %d)", admin.Email, admin.ID)

	log.Println("Demo database generated successfully!")
}
