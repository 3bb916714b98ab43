// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts when the whitelist already has entries.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"activity-compliance-plane/backend/internal/config"
	"activity-compliance-plane/backend/internal/db"
	whitelistdomain "activity-compliance-plane/backend/internal/whitelist/domain"
	whitelistrepo "activity-compliance-plane/backend/internal/whitelist/repository"
)

// devEntries are the allow-entries a fresh development database starts with.
var devEntries = []whitelistdomain.Entry{
	{Pattern: "internal.example.com", Kind: whitelistdomain.KindExact, Note: "company intranet"},
	{Pattern: "wiki.example.com", Kind: whitelistdomain.KindExact, Note: "company wiki"},
	{Pattern: "example-corp", Kind: whitelistdomain.KindSubstring, Note: "anything on the corp domain"},
	{Pattern: `^https://([a-z0-9-]+\.)?staging\.example\.com/`, Kind: whitelistdomain.KindRegex, Note: "staging environments"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := whitelistrepo.NewPostgresRepository(sqlDB)
	existing, err := repo.List(ctx)
	if err != nil {
		log.Fatalf("seed: listing whitelist: %v", err)
	}
	if len(existing) > 0 {
		log.Printf("seed: whitelist already has %d entries, nothing to do", len(existing))
		return
	}

	for i := range devEntries {
		if err := repo.Create(ctx, &devEntries[i]); err != nil {
			log.Fatalf("seed: creating entry %q: %v", devEntries[i].Pattern, err)
		}
	}
	log.Printf("seed: inserted %d whitelist entries", len(devEntries))
}
