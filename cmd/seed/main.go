// seed inserts a development user for local testing. Idempotent: skips the
// insert when the seed email already exists. Override the defaults with
// SEED_EMAIL and SEED_PASSWORD.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"tokentrail/internal/config"
	"tokentrail/internal/db"
	"tokentrail/internal/security"
	userdomain "tokentrail/internal/user/domain"
	userrepo "tokentrail/internal/user/repository"
)

const (
	defaultSeedEmail    = "dev@example.com"
	defaultSeedPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	email := os.Getenv("SEED_EMAIL")
	if email == "" {
		email = defaultSeedEmail
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = defaultSeedPassword
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", email)
		return
	}

	passwordHash, err := security.NewHasher().Hash([]byte(password))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("create seed user: %v", err)
	}
	log.Printf("Seeded user %s (%s)", email, user.ID)
}
