// Command acadmin is the bulk administration CLI bounding the
// autocompleter core per spec.md §6: flags --name, --remove, --store,
// --clear_cache, --skip_delete_old. Exit status reflects success or
// failure of the requested bulk operation. It holds no indexing logic
// of its own beyond dispatching to autocompleter.Engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	autocompleter "github.com/remiges-tech/autocompleter"
	"github.com/remiges-tech/autocompleter/examples/finance"
)

func main() {
	name := flag.String("name", "", "autocompleter name to operate on")
	remove := flag.Bool("remove", false, "remove_all: delete every posting and payload for the provider")
	store := flag.Bool("store", false, "store_all: reindex every item from the provider's iterator")
	clearCache := flag.Bool("clear_cache", false, "purge the autocompleter's query cache namespace")
	skipDeleteOld := flag.Bool("skip_delete_old", false, "skip retracting stale postings during store_all")
	flag.Parse()

	if *name == "" {
		fmt.Println("Usage: acadmin --name=<autocompleter> [--store] [--remove] [--clear_cache] [--skip_delete_old]")
		os.Exit(1)
	}
	if !*store && !*remove && !*clearCache {
		fmt.Println("nothing to do: pass at least one of --store, --remove, --clear_cache")
		os.Exit(1)
	}

	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	cfg := autocompleter.NewConfig(addr)
	cfg.Defaults.MaxResults = 10

	eng, err := autocompleter.New(cfg, log)
	if err != nil {
		log.Fatal("engine creation failed", zap.Error(err))
	}
	defer eng.Close()

	p := finance.NewProvider()
	if err := eng.RegisterProvider(*name, p); err != nil {
		log.Fatal("provider registration failed", zap.Error(err))
	}

	ctx := context.Background()

	if *store {
		start := time.Now()
		if err := eng.StoreAll(ctx, *name, p, !*skipDeleteOld); err != nil {
			log.Fatal("store_all failed", zap.String("autocompleter", *name), zap.Error(err))
		}
		log.Info("store_all complete",
			zap.String("autocompleter", *name),
			zap.Int("items", len(p.Entries())),
			zap.Duration("took", time.Since(start)),
		)
	}

	if *remove {
		start := time.Now()
		if err := eng.RemoveAll(ctx, *name, p.Name()); err != nil {
			log.Fatal("remove_all failed", zap.String("autocompleter", *name), zap.Error(err))
		}
		log.Info("remove_all complete",
			zap.String("autocompleter", *name),
			zap.Duration("took", time.Since(start)),
		)
	}

	if *clearCache && !*store && !*remove {
		if err := eng.PurgeCache(ctx, *name); err != nil {
			log.Fatal("clear_cache failed", zap.String("autocompleter", *name), zap.Error(err))
		}
		log.Info("cache cleared", zap.String("autocompleter", *name))
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
