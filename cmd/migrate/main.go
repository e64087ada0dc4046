// migrate applies the embedded SQL migrations; run with go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"ripple/cmd/internal/app"
	"ripple/cmd/internal/db"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg := app.LoadConfig()
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "RIPPLE_DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := db.Migrate(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
