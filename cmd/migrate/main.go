// Command migrate applies the embedded SQL migrations.
//
//	migrate [up|status]
package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/domainwatch/internal/pkg/logger"
	"github.com/ignite/domainwatch/internal/repository/postgres"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping failed", "error", err)
		os.Exit(1)
	}

	switch cmd {
	case "up":
		err = postgres.RunMigrations(ctx, db)
	case "status":
		err = postgres.MigrationStatus(ctx, db)
	default:
		logger.Error("unknown command, want up or status", "command", cmd)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migrate failed", "command", cmd, "error", err)
		os.Exit(1)
	}
	logger.Info("migrate finished", "command", cmd)
}
