package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oddsarb.dev/core/internal/api"
	"oddsarb.dev/core/internal/arbitrage"
	"oddsarb.dev/core/internal/engine"
	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/execution"
	"oddsarb.dev/core/internal/marketdata"
	"oddsarb.dev/core/internal/matcher"
	"oddsarb.dev/core/internal/orders"
	"oddsarb.dev/core/internal/persistence"
	"oddsarb.dev/core/internal/priceseries"
	"oddsarb.dev/core/internal/ratelimit"
	"oddsarb.dev/core/internal/risk"
	"oddsarb.dev/core/internal/strategy"
	"oddsarb.dev/core/internal/venue"
	venuekalshi "oddsarb.dev/core/internal/venue/kalshi"
	venuepolymarket "oddsarb.dev/core/internal/venue/polymarket"
	"oddsarb.dev/core/internal/venuews"
	wskalshi "oddsarb.dev/core/internal/venuews/kalshi"
	wspolymarket "oddsarb.dev/core/internal/venuews/polymarket"
	"oddsarb.dev/core/pkg/config"
	"oddsarb.dev/core/pkg/cryptoutil"
	"oddsarb.dev/core/pkg/db"
	"oddsarb.dev/core/pkg/i18n"
	"oddsarb.dev/core/pkg/metrics"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.Port)
	log.Printf(i18n.Get("UsingDBPath"), cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf(i18n.Get("DBInitFailed"), err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf(i18n.Get("DBMigrationsFailed"), err)
	}

	execLog := persistence.NewExecutionLog(database)
	defer execLog.Close()

	dailyPnl, err := persistence.ReplayTodayPnl(ctx, database)
	if err != nil {
		log.Printf(i18n.Get("PnlReplayFailed"), err)
	} else {
		log.Printf(i18n.Get("PnlReplayed"), dailyPnl)
	}

	reg := metrics.NewRegistry()
	rateLimits := ratelimit.NewRegistry()

	polyClient, err := venuepolymarket.New(venuepolymarket.Config{
		PrivateKey:    cfg.VenueA.PrivateKey,
		APIKey:        cfg.VenueA.APIKey,
		APISecret:     cfg.VenueA.APISecret,
		APIPassphrase: cfg.VenueA.APIPassphrase,
		FunderAddress: cfg.VenueA.FunderAddress,
		ChainID:       cfg.VenueA.ChainID,
		SignatureType: cfg.VenueA.SignatureType,
		TakerFeeRate:  cfg.VenueA.TakerFeeRate,
	}, rateLimits, reg)
	if err != nil {
		log.Fatalf(i18n.Get("VenueInitFailed"), venue.Polymarket, err)
	}

	kalshiClient, err := venuekalshi.New(venuekalshi.Config{
		KeyID:         cfg.VenueB.APIKeyID,
		PrivateKeyPEM: cfg.VenueB.PrivateKeyPEM,
		Environment:   cfg.VenueB.Environment,
		Host:          cfg.VenueB.Host,
		RateLimitTier: cfg.VenueB.RateLimitTier,
		TakerFeeRate:  cfg.VenueB.TakerFeeRate,
	}, rateLimits, reg)
	if err != nil {
		log.Fatalf(i18n.Get("VenueInitFailed"), venue.Kalshi, err)
	}

	// Dependencies.Venues always holds the real REST clients: market
	// discovery and order-book reads run against the live venues even in
	// paper-trading mode. Only execution is redirected to paper venues
	// below, inside the Order Manager's own venue map.
	restVenues := map[venue.ID]venue.Client{
		venue.Polymarket: polyClient,
		venue.Kalshi:     kalshiClient,
	}

	var polyWS, kalshiWS wsStreamClient
	if cfg.Features.EnableWebSocket {
		polyWS = wspolymarket.New(cfg.VenueA.WSURL)
		kalshiSigner, err := cryptoutil.NewKalshiSigner(cfg.VenueB.APIKeyID, cfg.VenueB.PrivateKeyPEM)
		if err != nil {
			log.Fatalf(i18n.Get("VenueInitFailed"), venue.Kalshi, err)
		}
		kalshiWS = wskalshi.New(cfg.VenueB.WSURL, kalshiSigner)
	}

	mdService := marketdata.New(bus, marketdata.Config{
		TTL:          5 * time.Second,
		Debounce:     time.Duration(cfg.Trading.DebounceMs) * time.Millisecond,
		PollInterval: 2 * time.Second,
	}, polyWS, kalshiWS, polyClient, kalshiClient)

	priceStore := priceseries.NewStore(500)
	mkt := matcher.New(nil)
	detector := arbitrage.New()
	detector.MinSpreadBpsOverride = cfg.Risk.MinArbitrageSpreadBps
	detector.CrossPlatformBufferOverride = cfg.Risk.CrossPlatformSpreadBuffer

	strategies := buildStrategies(cfg)

	limiters := map[venue.ID]*ratelimit.Limiter{
		venue.Polymarket: rateLimits.Get("polymarket.orders"),
		venue.Kalshi:     rateLimits.Get(cfg.VenueB.RateLimitTier),
	}

	// Execution venue map: paper mirrors stand in for the real clients
	// only when paper trading is enabled (spec.md §6 TRADING_PAPER_TRADING).
	execVenues := restVenues
	if cfg.Trading.PaperTrading {
		execVenues = map[venue.ID]venue.Client{
			venue.Polymarket: orders.NewPaperVenue(venue.Polymarket, mdService, cfg.Trading.PaperTradingBalance, cfg.VenueA.TakerFeeRate),
			venue.Kalshi:     orders.NewPaperVenue(venue.Kalshi, mdService, cfg.Trading.PaperTradingBalance, cfg.VenueB.TakerFeeRate),
		}
	}

	mgr := orders.New(bus, execVenues, limiters, nil, nil)

	engCfg := engine.Config{
		ScanIntervalMs:           cfg.Trading.ScanIntervalMs,
		CooldownAfterExecutionMs: cfg.Trading.CooldownAfterExecMs,
		ScanDebounceMs:           cfg.Trading.DebounceMs,
		TopNTrackedMarkets:       cfg.Trading.TopNTrackedMarkets,
		EnableCrossPlatformArb:   cfg.Features.EnableCrossPlatformArb,
		EnableSinglePlatformArb:  cfg.Features.EnableSinglePlatformArb,
		MaxSlippageBps:           cfg.Trading.MaxSlippageBps,
		ExecutionTimeoutMs:       cfg.Trading.ExecutionTimeoutMs,
		MinArbitrageSpreadBps:    cfg.Risk.MinArbitrageSpreadBps,
	}

	signalExecutor := execution.NewSignalExecutor(mgr, engCfg.MaxSlippageBps/100)
	arbExecutor := execution.NewArbitrageExecutor(map[venue.ID]execution.OrderPlacer{
		venue.Polymarket: mgr,
		venue.Kalshi:     mgr,
	})

	var balanceSrc risk.BalanceSource
	if cfg.Trading.PaperTrading {
		balanceSrc = execVenues[venue.Polymarket].(*orders.PaperVenue)
	} else {
		balanceSrc = &liveBalance{ctx: ctx, venues: restVenues}
	}

	drawdown := risk.NewDrawdownMonitor(balanceSrc, mgr)
	exposure := risk.NewExposureTracker()
	unsubExposure := exposure.Subscribe(bus)
	defer unsubExposure()

	riskCfg := risk.Config{
		MaxDailyLoss:         cfg.Risk.MaxDailyLossUsd,
		MaxDrawdownPct:       cfg.Risk.MaxDrawdownPct,
		MaxTotalExposure:     cfg.Risk.MaxTotalExposureUsd,
		ApiErrorRateThresh:   cfg.Risk.ApiErrorRateThreshold,
		ApiErrorWindow:       time.Duration(cfg.Risk.ApiErrorWindowSeconds) * time.Second,
		CheckInterval:        time.Duration(cfg.Risk.CheckIntervalMs) * time.Millisecond,
		PerMarketExposureCap: cfg.Risk.MaxPositionSizeUsd,
	}
	killSwitch := risk.NewKillSwitch(riskCfg, mgr, drawdown, exposure, bus)
	killSwitch.UpdateDailyPnl(dailyPnl)
	mgr.SetKillSwitch(killSwitch)
	mgr.SetPositionLimiter(risk.NewPositionLimits(riskCfg, exposure))

	eng := engine.New(engCfg, engine.Dependencies{
		Bus:               bus,
		Venues:            restVenues,
		MarketData:        mdService,
		Prices:            priceStore,
		Matcher:           mkt,
		Detector:          detector,
		Strategies:        strategies,
		SignalExecutor:    signalExecutor,
		ArbitrageExecutor: arbExecutor,
		Orders:            mgr,
		KillSwitch:        killSwitch,
		Persistence:       execLog,
	})
	log.Println(i18n.Get("EngineServiceInit"))

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf(i18n.Get("EngineRunFailed"), err)
		}
	}()

	server := api.NewServer(bus, database, eng, reg, cfg.JWTSecret, cfg.OperatorSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println(i18n.Get("ShuttingDown"))
	cancel()
}

// buildStrategies constructs only the strategies spec.md §6's feature
// flags enable, each seeded from its configured threshold block.
func buildStrategies(cfg *config.Config) []strategy.Strategy {
	var out []strategy.Strategy
	if cfg.Features.EnableEndgame {
		out = append(out, strategy.NewEndgameStrategy("endgame", cfg.Strategy.EndgameMinHoursToRes, cfg.Strategy.EndgameMaxHoursToRes, cfg.Strategy.EndgameMinProb, cfg.Strategy.EndgameMaxProb, cfg.Strategy.EndgameMinAnnualizedReturnPct))
	}
	if cfg.Features.EnableImbalance {
		out = append(out, strategy.NewImbalanceStrategy("imbalance", cfg.Strategy.ImbalanceThreshold))
	}
	if cfg.Features.EnableMeanReversion {
		out = append(out, strategy.NewMeanReversionStrategy("mean_reversion", cfg.Strategy.MeanReversionTauLow, cfg.Strategy.MeanReversionTauHigh))
	}
	if cfg.Features.EnableMomentum {
		out = append(out, strategy.NewMomentumStrategy("momentum", cfg.Strategy.MomentumTauMomentum, cfg.Strategy.MomentumTauChange))
	}
	if cfg.Features.EnableProbabilitySum {
		out = append(out, strategy.NewProbabilitySumStrategy("probability_sum", cfg.Strategy.ProbabilitySumEpsilonPercent))
	}
	return out
}

// wsStreamClient mirrors marketdata's unexported wsSource interface; both
// venuews client packages satisfy it structurally. A nil wsStreamClient
// variable (cfg.Features.EnableWebSocket off) stays a true nil interface
// when passed into marketdata.New, unlike a concrete nil *Client would.
type wsStreamClient interface {
	Run(ctx context.Context) (<-chan venuews.Update, error)
	Subscribe(channel string, identifiers []string)
}

// liveBalance sums real account balances across every connected venue,
// queried on demand for the Drawdown Monitor's equity computation
// (spec.md §4.12). Paper-trading mode uses the paper venue's own ledger
// instead (orders.PaperVenue already satisfies risk.BalanceSource).
type liveBalance struct {
	ctx    context.Context
	venues map[venue.ID]venue.Client
}

func (b *liveBalance) Balance() float64 {
	var total float64
	for _, v := range b.venues {
		bal, err := v.GetBalance(b.ctx)
		if err != nil {
			continue
		}
		total += bal
	}
	return total
}
