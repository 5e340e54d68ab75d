package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// Get command
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Connect to database
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	switch command {
	case "drop":
		if err := dropTables(ctx, conn); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		fmt.Println("✅ All tables dropped successfully")

	case "up":
		if err := createTables(ctx, conn); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		fmt.Println("✅ All tables created successfully")

	case "seed":
		if err := seedData(ctx, conn); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Usage: go run main.go [drop|up|seed]")
		os.Exit(1)
	}
}

func dropTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		`DROP TABLE IF EXISTS registry_events CASCADE`,
		`DROP TABLE IF EXISTS user_earnings CASCADE`,
		`DROP TABLE IF EXISTS participations CASCADE`,
		`DROP TABLE IF EXISTS campaigns CASCADE`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		fmt.Printf("  Dropped: %s\n", query)
	}

	return nil
}

func createTables(ctx context.Context, conn *pgx.Conn) error {
	queries := []string{
		// Campaign snapshots. Monetary columns are NUMERIC(78,0): large
		// enough for any 256-bit amount, always integral.
		`CREATE TABLE IF NOT EXISTS campaigns (
			id BIGINT PRIMARY KEY,
			creator TEXT NOT NULL,
			metadata_uri TEXT NOT NULL,
			campaign_type SMALLINT NOT NULL,
			reward_token TEXT NOT NULL,
			reward_amount NUMERIC(78,0) NOT NULL,
			max_participants BIGINT NOT NULL,
			participants_count BIGINT NOT NULL DEFAULT 0,
			expires_at TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			total_funded NUMERIC(78,0) NOT NULL DEFAULT 0,
			total_paid NUMERIC(78,0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_campaigns_creator ON campaigns(creator)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_active ON campaigns(is_active) WHERE is_active = TRUE`,

		// One row per paid completion.
		`CREATE TABLE IF NOT EXISTS participations (
			campaign_id BIGINT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			address TEXT NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (campaign_id, address)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_participations_address ON participations(address)`,

		// Lifetime reward totals per account.
		`CREATE TABLE IF NOT EXISTS user_earnings (
			address TEXT PRIMARY KEY,
			total NUMERIC(78,0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Append-only event log.
		`CREATE TABLE IF NOT EXISTS registry_events (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			campaign_id BIGINT NOT NULL,
			actor TEXT NOT NULL,
			token TEXT NOT NULL DEFAULT '',
			amount NUMERIC(78,0),
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_registry_events_campaign ON registry_events(campaign_id, id DESC)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	fmt.Println("  Created: campaigns, participations, user_earnings, registry_events")

	return nil
}

func seedData(ctx context.Context, conn *pgx.Conn) error {
	// A couple of sample campaigns for local development. The native token
	// sentinel is the zero address.
	query := `
		INSERT INTO campaigns (
			id, creator, metadata_uri, campaign_type, reward_token, reward_amount,
			max_participants, participants_count, expires_at, is_active,
			total_funded, total_paid
		) VALUES
		(1, '0x1111111111111111111111111111111111111111', 'ipfs://QmSeedVideoCampaign', 0,
		 '0x0000000000000000000000000000000000000000', 100000000000000000,
		 10, 0, NOW() + INTERVAL '30 days', TRUE, 1000000000000000000, 0),
		(2, '0x2222222222222222222222222222222222222222', 'ipfs://QmSeedSurveyCampaign', 1,
		 '0x0000000000000000000000000000000000000000', 50000000000000000,
		 20, 0, NOW() + INTERVAL '14 days', TRUE, 1000000000000000000, 0)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to seed campaigns: %w", err)
	}
	fmt.Println("  Seeded: 2 campaigns")

	return nil
}
