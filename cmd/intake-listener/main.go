package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"daybook/internal/cache"
	"daybook/internal/config"
	"daybook/internal/listener"
	"daybook/internal/pipeline"
	"daybook/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	pipe := pipeline.NewService(db, cache.New(cfg.SheetCacheSize), cfg)

	// Nightly aggregate sweep keeps stored sheets consistent with any
	// out-of-band edits to the records behind them.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SweepCron, func() {
		changed, err := pipe.SweepAggregates()
		if err != nil {
			fmt.Printf("aggregate sweep error: %v\n", err)
			return
		}
		fmt.Printf("aggregate sweep done changed=%d\n", changed)
	})
	must(err)
	scheduler.Start()
	defer scheduler.Stop()

	svc := listener.NewService(db, pipe, cfg)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
