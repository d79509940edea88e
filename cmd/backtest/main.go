// Command backtest replays exchange history through the live pipeline with
// a paper broker: same indicators, same signal setups, same executioner,
// only the fills are simulated. back_testing_config.json names a historical
// sample to fit against and, optionally, an unseen sample to evaluate on;
// dates are Jalali calendar dates.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"nobitex-trader/config"
	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/candlestore"
	"nobitex-trader/internal/indicator"
	"nobitex-trader/internal/logger"
	"nobitex-trader/internal/model"
	"nobitex-trader/internal/nobitex"
	"nobitex-trader/internal/poller"
	"nobitex-trader/internal/signal"
	"nobitex-trader/internal/strategy"
	"nobitex-trader/internal/timeutil"
	"nobitex-trader/internal/trader"
)

const defaultChunkBars = 500

// sampleWindow is one replay window in epoch seconds.
type sampleWindow struct {
	FromTS int64
	ToTS   int64
}

type btConfig struct {
	Symbol     string // overrides config.json's pair when set
	Resolution string
	ChunkBars  int
	Historical sampleWindow
	Unseen     *sampleWindow

	SlippageBps    float64
	InitialBalance float64
	WarmupBars     int
}

func parseWindow(v *viper.Viper, prefix string) (sampleWindow, error) {
	from, err := timeutil.ParseJalali(v.GetString(prefix + ".start"))
	if err != nil {
		return sampleWindow{}, fmt.Errorf("%s.start: %w", prefix, err)
	}
	to, err := timeutil.ParseJalali(v.GetString(prefix + ".end"))
	if err != nil {
		return sampleWindow{}, fmt.Errorf("%s.end: %w", prefix, err)
	}
	w := sampleWindow{FromTS: from.Unix(), ToTS: to.Unix()}
	if w.ToTS <= w.FromTS {
		return sampleWindow{}, fmt.Errorf("%s: end must be after start", prefix)
	}
	return w, nil
}

func loadBTConfig(dir string) (btConfig, error) {
	v := viper.New()
	v.SetConfigName("back_testing_config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		return btConfig{}, fmt.Errorf("read back_testing_config.json: %w", err)
	}

	hist, err := parseWindow(v, "historical_sample")
	if err != nil {
		return btConfig{}, err
	}
	cfg := btConfig{
		Symbol:         v.GetString("historical_sample.trading_pair.symbol"),
		Resolution:     v.GetString("historical_sample.timeframe"),
		ChunkBars:      v.GetInt("historical_sample.fetch_chunck_size"),
		Historical:     hist,
		SlippageBps:    v.GetFloat64("slippage_bps"),
		InitialBalance: v.GetFloat64("initial_balance"),
		WarmupBars:     v.GetInt("warmup_bars"),
	}
	if cfg.ChunkBars <= 0 {
		cfg.ChunkBars = defaultChunkBars
	}
	if cfg.WarmupBars == 0 {
		cfg.WarmupBars = 50
	}
	if v.IsSet("unseen_sample.start") {
		unseen, err := parseWindow(v, "unseen_sample")
		if err != nil {
			return btConfig{}, err
		}
		cfg.Unseen = &unseen
	}
	return cfg, nil
}

func main() {
	configDir := flag.String("config", "configs", "directory holding config files")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, "backtest:", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Level: cfg.Logs.Level("root"), File: cfg.Logs.File})

	if cfg.LocalTimeZoneName != "" {
		if err := timeutil.SetZone(cfg.LocalTimeZoneName); err != nil {
			return err
		}
	}
	bt, err := loadBTConfig(configDir)
	if err != nil {
		return err
	}
	symbol := cfg.Symbol
	if bt.Symbol != "" {
		symbol = bt.Symbol
	}
	resolution := cfg.Resolution
	if bt.Resolution != "" {
		resolution = bt.Resolution
	}

	doc, err := strategy.LoadDocument(configDir)
	if err != nil {
		return err
	}
	system, err := strategy.NewResolver(
		strategy.DefaultRegistries(indicator.Registry()), logger.Named("strategy")).Resolve(doc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := runSample(ctx, cfg, bt, system, symbol, resolution, "historical", bt.Historical); err != nil {
		return err
	}
	if bt.Unseen != nil {
		if err := runSample(ctx, cfg, bt, system, symbol, resolution, "unseen", *bt.Unseen); err != nil {
			return err
		}
	}
	return nil
}

// runSample fetches one window and replays it against a fresh paper broker.
func runSample(ctx context.Context, cfg *config.Config, bt btConfig,
	system *strategy.TradingSystem, symbol, resolution, name string, w sampleWindow) error {

	candles, err := fetchHistory(ctx, cfg, bt, symbol, resolution, w)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("%s sample: no history in the requested window", name)
	}
	logger.Named("backtest").WithField("bars", len(candles)).
		WithField("sample", name).Info("history fetched, replaying")

	broker := trader.NewPaperBroker(bt.SlippageBps)
	fills := replay(ctx, cfg, bt, system, symbol, resolution, candles, broker)

	fmt.Printf("%s sample: replayed %d bars (%s to %s), %d fills\n",
		name,
		len(candles),
		timeutil.FormatJalali(candles[0].TS),
		timeutil.FormatJalali(candles[len(candles)-1].TS),
		len(fills))
	for _, f := range fills {
		fmt.Printf("  %-8s %-4s amount=%-12g price=%-12g stop=%-12g at %s\n",
			f.OrderID, f.Request.Side, f.Request.Amount, f.Price,
			f.Request.StopPrice, timeutil.FormatJalali(f.FilledAt))
	}
	return nil
}

// fetchHistory pulls the window in fetch_chunck_size chunks through the
// same rate limited client the live bot uses.
func fetchHistory(ctx context.Context, cfg *config.Config, bt btConfig,
	symbol, resolution string, w sampleWindow) ([]model.Candle, error) {

	barSecs, err := model.ResolutionSeconds(resolution)
	if err != nil {
		return nil, err
	}
	store, err := candlestore.New(resolution, candlestore.DefaultSize)
	if err != nil {
		return nil, err
	}
	baseURL := nobitex.BaseURLMain
	if cfg.Setting == config.SettingTest {
		baseURL = nobitex.BaseURLTest
	}
	client := nobitex.NewClient(baseURL, "", logger.Named("nobitex"))
	p := poller.New(poller.Config{
		Symbol: symbol, SrcCurrency: cfg.SrcCurrency, DstCurrency: cfg.DstCurrency,
		Resolution: resolution, RequiredCandles: cfg.RequiredCandles,
	}, client, store, nil, logger.Named("poller"), nil)

	var out []model.Candle
	chunk := int64(bt.ChunkBars) * barSecs
	for cur := w.FromTS; cur <= w.ToTS; cur += chunk {
		end := cur + chunk - barSecs
		if end > w.ToTS {
			end = w.ToTS
		}
		batch, err := p.FetchRange(ctx, cur, end)
		if err != nil {
			return nil, err
		}
		out = append(out, batch.Candles()...)
	}
	return out, nil
}

// replay pushes candles one by one through the pipeline, pricing each bar
// at its close.
func replay(ctx context.Context, cfg *config.Config, bt btConfig,
	system *strategy.TradingSystem, symbol, resolution string,
	candles []model.Candle, broker *trader.PaperBroker) []trader.PaperFill {

	log := logger.Named("replay")
	b := bus.New(log)
	bus.RegisterAll(b)

	store, err := candlestore.New(resolution, len(candles)+1)
	if err != nil {
		log.WithError(err).Error("store init failed")
		return nil
	}

	balance := func(ctx context.Context) (float64, error) { return bt.InitialBalance, nil }
	exec := trader.NewExecutioner(trader.ExecConfig{
		Symbol:      symbol,
		SrcCurrency: cfg.SrcCurrency,
		DstCurrency: cfg.DstCurrency,
		Category:    model.CategorySpot,
	}, system, broker, nil, b, logger.Named("executioner"), nil, balance, nil)

	eng := trader.NewEngine(symbol, resolution, store, system,
		indicator.NewSupervisor(logger.Named("indicator"), nil),
		signal.NewSupervisor(logger.Named("signal"), nil),
		exec, b, logger.Named("engine"), nil)
	exec.SetPriceFunc(eng.Price)
	if err := eng.Start(); err != nil {
		log.WithError(err).Error("engine start failed")
		return nil
	}

	for i, c := range candles {
		store.Update([]model.Candle{c})
		eng.SetPrice(c.Close)
		if i+1 < bt.WarmupBars {
			continue
		}
		if err := b.Emit(ctx, bus.NewCandles, bus.Payload{
			"symbol": symbol, "resolution": resolution,
		}); err != nil {
			log.WithError(err).Error("replay emit failed")
			return broker.Fills()
		}
	}
	return broker.Fills()
}
