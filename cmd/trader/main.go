// Command trader runs the live trading bot: it authorizes against the
// exchange, seeds and maintains the rolling candle store, and drives the
// candle-to-order pipeline until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	osig "os/signal"
	"sync"
	"syscall"

	"nobitex-trader/config"
	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/candlestore"
	"nobitex-trader/internal/indicator"
	"nobitex-trader/internal/logger"
	"nobitex-trader/internal/metrics"
	"nobitex-trader/internal/model"
	"nobitex-trader/internal/nobitex"
	"nobitex-trader/internal/notification"
	"nobitex-trader/internal/poller"
	"nobitex-trader/internal/signal"
	redisstore "nobitex-trader/internal/store/redis"
	"nobitex-trader/internal/strategy"
	"nobitex-trader/internal/timeutil"
	"nobitex-trader/internal/trader"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding config.json, logs_config.json and strategy.json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, "trader:", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{
		Level: cfg.Logs.Level("root"),
		File:  cfg.Logs.File,
	})
	log := logger.Named("trader")

	if cfg.LocalTimeZoneName != "" {
		if err := timeutil.SetZone(cfg.LocalTimeZoneName); err != nil {
			return err
		}
	}
	if !cfg.TokenConfigured() {
		log.Warn(config.TokenFallback)
	}

	doc, err := strategy.LoadDocument(configDir)
	if err != nil {
		return err
	}
	resolver := strategy.NewResolver(
		strategy.DefaultRegistries(indicator.Registry()), logger.Named("strategy"))
	system, err := resolver.Resolve(doc)
	if err != nil {
		return err
	}

	met := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	b := bus.New(logger.Named("bus"))
	bus.RegisterAll(b)

	storeSize := cfg.StoreSize
	if storeSize == 0 {
		storeSize = candlestore.DefaultSize
	}
	store, err := candlestore.New(cfg.Resolution, storeSize)
	if err != nil {
		return err
	}

	baseURL := nobitex.BaseURLMain
	if cfg.Setting == config.SettingTest {
		baseURL = nobitex.BaseURLTest
	}
	client := nobitex.NewClient(baseURL, cfg.APIToken, logger.Named("nobitex")).WithMetrics(met)

	p := poller.New(poller.Config{
		Symbol:          cfg.Symbol,
		SrcCurrency:     cfg.SrcCurrency,
		DstCurrency:     cfg.DstCurrency,
		Resolution:      cfg.Resolution,
		RequiredCandles: cfg.RequiredCandles,
	}, client, store, b, logger.Named("poller"), met)

	var journal *trader.Journal
	if cfg.JournalPath != "" {
		journal, err = trader.NewJournal(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	ctx, stop := osig.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Authorize(ctx, cfg.ProfileID); err != nil {
		return fmt.Errorf("authorization: %w", err)
	}

	balance := func(ctx context.Context) (float64, error) {
		wallets, err := p.Wallets(ctx)
		if err != nil {
			return 0, err
		}
		return wallets.Balance(cfg.DstCurrency), nil
	}

	category := cfg.OrderCategory
	if category == "" {
		category = model.CategorySpot
	}
	exec := trader.NewExecutioner(trader.ExecConfig{
		Symbol:      cfg.Symbol,
		SrcCurrency: cfg.SrcCurrency,
		DstCurrency: cfg.DstCurrency,
		Category:    category,
		CancelOld:   cfg.CancelOld,
	}, system, trader.NewLiveBroker(client), journal, b, logger.Named("executioner"), met,
		balance, nil)

	eng := trader.NewEngine(cfg.Symbol, cfg.Resolution, store, system,
		indicator.NewSupervisor(logger.Named("indicator"), met),
		signal.NewSupervisor(logger.Named("signal"), met),
		exec, b, logger.Named("engine"), met)
	exec.SetPriceFunc(eng.Price)
	if err := eng.Start(); err != nil {
		return err
	}

	if err := notification.Attach(b, notifierFrom(cfg), logger.Named("notify")); err != nil {
		return err
	}
	if cfg.RedisAddr != "" {
		pub, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr}, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.Attach(b); err != nil {
			return err
		}
		if err := b.Attach(bus.NewCandles, func(ctx context.Context, _ bus.Payload) {
			candles := store.Snapshot()
			if len(candles) == 0 {
				return
			}
			pub.PublishCandle(ctx, cfg.Symbol, cfg.Resolution, candles[len(candles)-1])
		}); err != nil {
			return err
		}
	}

	if err := p.InitiateKline(ctx); err != nil {
		return err
	}
	if err := p.PopulateKline(ctx); err != nil {
		return err
	}

	prices := make(chan float64, 1)
	books := make(chan *model.OrderBookSnapshot, 1)
	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); p.PollPrice(ctx, prices) }()
	go func() { defer wg.Done(); eng.ConsumePrices(ctx, prices) }()
	go func() { defer wg.Done(); p.PollOrderBook(ctx, books) }()
	go func() { defer wg.Done(); eng.ConsumeOrderBooks(ctx, books) }()
	go func() { defer wg.Done(); p.UpdateKline(ctx) }()

	log.WithField("symbol", cfg.Symbol).Info("trading loop running")
	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	return nil
}

func notifierFrom(cfg *config.Config) notification.Notifier {
	log := logger.Named("notify")
	switch {
	case cfg.TelegramToken != "" && cfg.TelegramChatID != "":
		return notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, log)
	case cfg.WebhookURL != "":
		return notification.NewWebhookNotifier(cfg.WebhookURL, log)
	default:
		return notification.NewLogNotifier(log)
	}
}
