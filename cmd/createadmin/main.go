// Command createadmin creates or updates an admin inbox account.
//
// Usage:
//
//	createadmin -email staff@non-turn.com -password 'secret'
//
// It connects using DATABASE_URL (or SQLITE_PATH for local development) the
// same way the server does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

func main() {
	email := flag.String("email", "", "admin email address")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: createadmin -email <email> -password <password>")
		os.Exit(2)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(2)
	}

	_ = godotenv.Load()
	ctx := context.Background()

	var db store.DataStore
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		if err := store.RunMigrations(databaseURL); err != nil {
			fatal(err)
		}
		pgStore, err := store.NewPostgresStore(ctx, databaseURL)
		if err != nil {
			fatal(err)
		}
		defer pgStore.Close()
		db = pgStore
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, os.Getenv("SQLITE_PATH"))
		if err != nil {
			fatal(err)
		}
		defer sqliteStore.Close()
		db = sqliteStore
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fatal(err)
	}

	user, err := db.CreateAdminUser(ctx, *email, string(hash))
	if err != nil {
		fatal(err)
	}

	fmt.Printf("admin user ready: %s (%s)\n", user.Email, user.ID)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
