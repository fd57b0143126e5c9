package main

import (
	"log"
	"os"

	"github.com/MKRushil/Pulse/internal/model"
	"github.com/MKRushil/Pulse/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting Authoritative GORM Migration...")

	// 3. Pre-Migration: Extensions (Things GORM AutoMigrate doesn't do)
	log.Println("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE EXTENSION IF NOT EXISTS pg_trgm;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate All Models (The Core Task)
	log.Println("Step 2: Running AutoMigrate...")

	models := []interface{}{
		&model.Practitioner{},
		&model.PractitionerRefreshToken{},
		&model.CaseRecord{},
		&model.AuditRecord{},
	}

	// Migrate strictly
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: Search Indexes
	// HNSW carries the cosine ranking; the trigram indexes keep the LIKE
	// prefilter on the lexical columns off a sequential scan.
	log.Println("Step 3: Creating Search Indexes...")

	postMigrationSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_case_records_embedding
		 ON case_records USING hnsw (embedding vector_cosine_ops);`,

		`CREATE INDEX IF NOT EXISTS idx_case_records_text_cjk_trgm
		 ON case_records USING gin (text_cjk gin_trgm_ops);`,

		`CREATE INDEX IF NOT EXISTS idx_case_records_text_raw_trgm
		 ON case_records USING gin (text_raw gin_trgm_ops);`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
