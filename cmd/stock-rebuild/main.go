package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/agrifocus/mandi_backend/workflow"
)

func main() {
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before rebuilding (creates stock_summaries if missing)")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	count, err := workflow.RebuildStockSummaries(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stock rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuilt %d stock summaries\n", count)
}
