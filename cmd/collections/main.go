package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quietstone/shopify-catalog-scraper/internal/browser"
	"github.com/quietstone/shopify-catalog-scraper/internal/collections"
	"github.com/quietstone/shopify-catalog-scraper/internal/config"
	"github.com/quietstone/shopify-catalog-scraper/pkg/logger"
)

func main() {
	var (
		headless = flag.Bool("headless", true, "Run browser in headless mode")
		urls     = flag.String("urls", "", "Comma-separated collection URLs (defaults to the built-in whitelist)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless && *headless
	browserOpts.UserAgent = cfg.Browser.UserAgent
	browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
	browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
	browserOpts.NavTimeout = cfg.Browser.NavTimeout
	browserOpts.DefaultTimeout = cfg.Browser.DefaultTimeout

	b, err := browser.New(browserOpts)
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	targets := collections.Whitelist
	if *urls != "" {
		targets = strings.Split(*urls, ",")
	}

	crawler := collections.NewCrawler(b, collections.NewResolver(cfg.Collections.Dir))
	if err := crawler.Crawl(ctx, targets); err != nil {
		logger.Error("collection crawl failed", "error", err)
		os.Exit(1)
	}

	logger.Info("collection membership files written", "dir", cfg.Collections.Dir)
}
