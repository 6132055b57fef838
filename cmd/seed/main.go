// seed creates the schedules table (if missing) and inserts a handful of
// schedules into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/writestack/noteflow/internal/infrastructure/postgres"
)

const seedUserID = "seed-user"

const schema = `
	CREATE TABLE IF NOT EXISTS schedules (
		schedule_id       TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		fire_at           TIMESTAMPTZ NOT NULL,
		note_id           TEXT,
		substack_note_id  TEXT,
		is_processing     BOOLEAN NOT NULL DEFAULT FALSE,
		status            TEXT NOT NULL DEFAULT 'scheduled',
		error             TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_fire_at ON schedules (status, fire_at);
`

type scheduleSpec struct {
	id     string
	noteID string
	offset time.Duration
}

var schedules = []scheduleSpec{
	// Near-term — should fire about a minute after seeding
	{"seed-001", "note-001", time.Minute},
	{"seed-002", "note-002", 90 * time.Second},

	// Later today
	{"seed-003", "note-003", time.Hour},
	{"seed-004", "note-004", 2 * time.Hour},

	// Tomorrow
	{"seed-005", "note-005", 24 * time.Hour},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		log.Fatalf("create schema: %v", err)
	}

	now := time.Now()

	// Insert schedules, skip any that already exist (idempotent re-runs)
	var inserted, skipped int
	for _, spec := range schedules {
		tag, err := pool.Exec(ctx, `
			INSERT INTO schedules (schedule_id, user_id, fire_at, note_id, status)
			VALUES ($1, $2, $3, $4, 'scheduled')
			ON CONFLICT (schedule_id) DO NOTHING`,
			spec.id, seedUserID, now.Add(spec.offset), spec.noteID,
		)
		if err != nil {
			pool.Close()
			log.Fatalf("insert schedule %s: %v", spec.id, err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	pool.Close()

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User ID:           %s\n", seedUserID)
	fmt.Printf("  Schedules created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Printf("  First fire at:     %s  (~1 minute from now)\n", now.Add(time.Minute).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — list schedules (sign a JWT with your JWT_SECRET, sub=seed-user):")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/schedules -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Step 2 — wait ~1 minute for seed-001 to fire, then list again:")
	fmt.Println("    # sent schedules disappear; failed ones stay with status=error")
	fmt.Println()
	fmt.Println("  Step 3 — force one by hand without waiting:")
	fmt.Println()
	fmt.Println("    curl -s -X POST http://localhost:8080/schedules/seed-003/send-now \\")
	fmt.Println("      -H \"Authorization: Bearer $JWT\"")
}
