package main

import (
	"context"
	"fmt"
	"os"

	"orderdesk/internal/backend"
	"orderdesk/internal/config"
	"orderdesk/internal/storage"
	"orderdesk/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	fmt.Printf("order-watcher starting dir=%s interval=%ds\n", cfg.WatchDir, cfg.WatchIntervalSec)
	svc := watcher.NewService(db, cfg, backend.NewClient(cfg))
	must(svc.Run(context.Background()))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
