package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"pivot-itm-bot/internal/breaker"
	"pivot-itm-bot/internal/broker/brokerobs"
	"pivot-itm-bot/internal/broker/paper"
	"pivot-itm-bot/internal/broker/zerodha"
	"pivot-itm-bot/internal/calendar"
	"pivot-itm-bot/internal/dashboard"
	"pivot-itm-bot/internal/engine"
	"pivot-itm-bot/internal/engine/engineobs"
	"pivot-itm-bot/internal/eod"
	"pivot-itm-bot/internal/eod/eodobs"
	"pivot-itm-bot/internal/fetch"
	"pivot-itm-bot/internal/instruments"
	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/store"
	"pivot-itm-bot/internal/trace"
	"pivot-itm-bot/internal/tradelog"
)

// initializeSystem loads .env and starts the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs gzips journal files older than the retention window.
func compressOldLogs(ctx context.Context, cfg *store.Config, journal *tradelog.Journal) {
	if cfg.Journal.RetentionDays <= 0 {
		return
	}
	if err := journal.CompressOlder(cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// initializeBroker connects the Kite client. Market data always comes from
// Kite; orders only go there in LIVE mode.
func initializeBroker(ctx context.Context, cfg *store.Config, loc *time.Location) (*zerodha.Zerodha, error) {
	kite, err := zerodha.NewZerodha(zerodha.Params{
		APIKey:         os.Getenv("KITE_API_KEY"),
		AccessToken:    os.Getenv("KITE_ACCESS_TOKEN"),
		SpotSymbol:     cfg.SpotSymbol,
		SpotToken:      cfg.SpotToken,
		OptionExchange: cfg.OptionExchange,
		Location:       loc,
	})
	if err != nil {
		return nil, fmt.Errorf("kite: %w", err)
	}
	logger.Info(ctx, "Kite client ready", "spot", cfg.SpotSymbol, "exchange", cfg.OptionExchange)
	return kite, nil
}

func initializeExecutor(ctx context.Context, cfg *store.Config, kite *zerodha.Zerodha) interfaces.Executor {
	if cfg.Mode == "LIVE" {
		logger.Warn(ctx, "LIVE mode: orders will be sent to the exchange")
		return kite
	}
	logger.Info(ctx, "PAPER mode: orders are simulated")
	return paper.New()
}

// initializeJournal opens the JSONL journal and, when configured, its
// SQLite mirror. The returned closer releases the mirror.
func initializeJournal(ctx context.Context, cfg *store.Config, loc *time.Location) (*tradelog.Journal, func(), error) {
	if cfg.Journal.SQLitePath == "" {
		return tradelog.New(cfg.Journal.Dir, loc), func() {}, nil
	}

	db, err := tradelog.OpenSQLite(cfg.Journal.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open trade store: %w", err)
	}
	logger.Info(ctx, "Trade store mirror enabled", "path", cfg.Journal.SQLitePath)

	closer := func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close trade store", "error", err)
		}
	}
	return tradelog.New(cfg.Journal.Dir, loc, tradelog.WithSQLite(db)), closer, nil
}

// initializeEOD returns the daily report summarizer with observability.
func initializeEOD(cfg *store.Config, journal *tradelog.Journal, loc *time.Location) interfaces.EodSummarizer {
	return eodobs.Wrap(eod.NewSummarizer(journal, cfg.Journal.Dir, loc))
}

// initializeDashboard builds the shared state and, when enabled, serves it
// until ctx ends.
func initializeDashboard(ctx context.Context, cfg *store.Config) *dashboard.State {
	state := dashboard.NewState(cfg.Dashboard.MaxEvents, cfg.Dashboard.MaxTrades)
	if !cfg.Dashboard.Enabled {
		return state
	}

	srv := dashboard.NewServer(state, cfg.Dashboard.Addr)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Dashboard server stopped", err)
		}
	}()
	return state
}

// initializeEngine assembles the strategy engine with observability.
func initializeEngine(
	cfg *store.Config,
	cal *calendar.Calendar,
	kite zerodha.Broker,
	exec interfaces.Executor,
	journal *tradelog.Journal,
	reporter interfaces.EodSummarizer,
	sink interfaces.Sink,
) (interfaces.Engine, error) {
	eng, err := engine.New(engine.Deps{
		Config:        cfg,
		Calendar:      cal,
		Market:        kite,
		Resolver:      instruments.NewResolver(kite, cfg.OptionSegment, cfg.LotSize, cfg.ExpiryWindowDays),
		Executor:      exec,
		Journal:       journal,
		Decisions:     journal,
		Sink:          sink,
		Reporter:      reporter,
		Fetcher:       fetch.New(cfg.Fetch.MaxRetries, cfg.Fetch.RetryDelay),
		SpotBreaker:   breaker.New("spot_price", cfg.Breaker.Threshold, cfg.Breaker.Cooldown),
		OptionBreaker: breaker.New("option_price", cfg.Breaker.Threshold, cfg.Breaker.Cooldown),
	})
	if err != nil {
		return nil, err
	}
	return engineobs.Wrap(eng), nil
}

func logStartupBanner(ctx context.Context, cfg *store.Config) {
	logger.Banner(ctx, "PIVOT ITM OPTION BOT STARTING",
		"mode", cfg.Mode,
		"underlying", cfg.Underlying,
		"quantity", cfg.Quantity(),
		"max_daily_trades", cfg.MaxDailyTrades,
		"pivot_buffer", cfg.PivotBufferPoints,
		"bias_candle", cfg.Session.BiasCandleStart.String()+"-"+cfg.Session.BiasCandleEnd.String(),
		"stop_loss_pct", cfg.StopLossPct*100,
		"profit_target_pct", cfg.ProfitTargetPct*100,
		"entry_cutoff", cfg.Session.EntryCutoff.String(),
		"eod_exit", cfg.Session.EODExit.String(),
	)
}

// runBot wires every component and drives the engine until ctx ends.
func runBot(ctx context.Context, cfg *store.Config) error {
	cal, err := calendar.New(cfg)
	if err != nil {
		return err
	}
	loc := cal.Location()

	logStartupBanner(ctx, cfg)

	journal, closeJournal, err := initializeJournal(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer closeJournal()
	compressOldLogs(ctx, cfg, journal)

	kite, err := initializeBroker(ctx, cfg, loc)
	if err != nil {
		return err
	}
	exec := initializeExecutor(ctx, cfg, kite)
	state := initializeDashboard(ctx, cfg)
	reporter := initializeEOD(cfg, journal, loc)

	eng, err := initializeEngine(cfg, cal, brokerobs.Wrap(kite), exec, journal, reporter, state)
	if err != nil {
		return err
	}

	engine.Run(ctx, eng, engine.RunConfig{
		ErrorBackoff:      cfg.Loop.ErrorBackoff,
		HeartbeatInterval: cfg.Loop.HeartbeatInterval,
		Sink:              state,
	})

	logger.Info(ctx, "Bot stopped")
	return nil
}
