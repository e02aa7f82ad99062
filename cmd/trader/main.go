// cmd/trader runs the live intraday engine: WebSocket ticks are
// aggregated into bars, fed through the DI/ADX pipeline, and any
// resulting positions are managed to a mandatory 15:20 IST square-off.
//
// With broker credentials in the environment it logs in each morning
// and trades during market hours; without them it connects straight to
// WS_URL (a tick simulator) and runs unconditionally.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"adx-systemv1/config"
	"adx-systemv1/internal/auth"
	"adx-systemv1/internal/broker"
	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/engine"
	"adx-systemv1/internal/execution"
	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/logger"
	"adx-systemv1/internal/marketdata/agg"
	"adx-systemv1/internal/marketdata/bus"
	"adx-systemv1/internal/marketdata/feed"
	"adx-systemv1/internal/markethours"
	"adx-systemv1/internal/metrics"
	"adx-systemv1/internal/model"
	"adx-systemv1/internal/notification"
	"adx-systemv1/internal/portfolio"
	"adx-systemv1/internal/position"
	"adx-systemv1/internal/ringbuf"
	signalpkg "adx-systemv1/internal/signal"
	redisstore "adx-systemv1/internal/store/redis"
	sqlitestore "adx-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("trader", slog.LevelInfo)
	log.Println("[trader] starting...")

	cfg := config.Load()
	liveMode := cfg.BrokerTOTPSecret != ""
	if !liveMode {
		log.Println("[trader] no broker credentials — running against tick simulator")
	}

	clk := clock.NewWall(markethours.IST)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("[trader] received %v, shutting down", s)
		cancel()
	}()

	// ---- SQLite (bars + indicator snapshots, off the hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[trader] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	log.Println("[trader] sqlite writer ready")
	for _, sym := range cfg.Symbols {
		if ts, err := sqlWriter.GetLastTimestamp(sym); err == nil && ts > 0 {
			log.Printf("[trader] %s: bar history resumes after %s",
				sym, time.Unix(ts, 0).In(markethours.IST).Format("2006-01-02 15:04"))
		}
	}

	// ---- Redis publisher (optional: engine trades without it) ----
	var pub *redisstore.Publisher
	pub, err = redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[trader] WARNING: redis init failed: %v (continuing without redis)", err)
		pub = nil
	} else {
		cb := pub.Breaker()
		cb.OnStateChange = func(from, to redisstore.State) {
			log.Printf("[trader] redis circuit breaker %s -> %s", from, to)
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
	}

	// ---- Liveness checks ----
	if pub != nil {
		health.StartLivenessChecker(ctx, pub.Client(), sqlWriter.DB(), 15*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 15*time.Second)
	}
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if markethours.IsMarketOpen(clk.Now()) {
					prom.MarketState.Set(1)
				} else {
					prom.MarketState.Set(0)
				}
			}
		}
	}()

	// ---- Indicator engine, warm-started from the last snapshot ----
	ind := indicator.NewEngine(cfg.DIPeriod)
	if reader, err := sqlitestore.NewReader(cfg.SQLitePath); err == nil {
		if snap, err := reader.ReadLatestSnapshot(); err == nil && snap != nil {
			ind = indicator.RestoreEngine(cfg.DIPeriod, snap)
			log.Printf("[trader] indicator state restored (%d symbols)", len(snap.Symbols))
		}
		reader.Close()
	}

	// ---- Strategy pipeline ----
	det := signalpkg.NewDetector(signalpkg.Config{
		MinDISeparation:  cfg.MinDISeparation,
		MinADXStrength:   cfg.MinADXStrength,
		VolumePercentile: cfg.VolumePercentile,
		VolumeWindow:     cfg.VolumeWindow,
		MinVolumeRatio:   cfg.MinVolumeRatio,
		MinConfidence:    cfg.MinConfidence,
		SignalCutoff:     cfg.SignalCutoff,
	}, clk)

	session := portfolio.NewSession(cfg.PortfolioValue, cfg.RiskPerTradePct, cfg.MaxPositions)
	exec := execution.NewPaperExecutor(clk, int64(cfg.SlippageBps))
	mgr := position.NewManager(position.Config{
		TrailingStopPct: cfg.TrailingStopPct,
		SquareOffTime:   cfg.SquareOffTime,
	}, clk, session, exec)
	notifier := buildNotifier()
	mgr.DeadlineMissedHook = func(symbol string) {
		prom.DeadlineMissed.Inc()
		go notifier.Send(context.Background(), notification.DeadlineAlert(symbol))
	}

	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[trader] trade journal init failed: %v", err)
	}
	defer journal.Close()

	eng := engine.New(engine.Config{
		Indicator: ind,
		Detector:  det,
		Positions: mgr,
		Metrics:   prom,
		Publisher: pub,
		Notifier:  notifier,
	})

	// ---- Data path: feed -> ring -> aggregator -> fanout ----
	tickCh := make(chan model.Tick, 10000)
	aggTickCh := make(chan model.Tick, 10000)
	barCh := make(chan model.Bar, 5000)

	ring := ringbuf.New(16384)
	go func() { // producer side of the ring
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-tickCh:
				prom.TicksTotal.Inc()
				health.SetLastTickTime(time.Now())
				if !ring.Push(t) {
					prom.RingBufOverflow.Inc()
				}
			}
		}
	}()
	go func() { // consumer side
		for {
			t, ok := ring.Pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Millisecond):
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case aggTickCh <- t:
			}
		}
	}()

	aggregator := agg.New(cfg.BarInterval, clk)
	aggregator.OnDroppedTick = func(symbol string) {
		prom.DroppedTicks.Inc()
	}
	go aggregator.Run(ctx, aggTickCh, barCh)

	fan := bus.New(5000)
	fan.OnDrop = func(idx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(idx)).Inc()
	}
	sqliteCh := fan.Subscribe()
	engineCh := fan.Subscribe()
	var redisCh <-chan model.Bar
	if pub != nil {
		redisCh = fan.Subscribe()
	}
	healthCh := fan.Subscribe()
	go fan.Run(ctx, barCh)
	go func() { // fanout saturation watch
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for i, st := range fan.ChannelStats() {
					if st.Cap > 0 && st.Len*2 > st.Cap {
						log.Printf("[trader] bus subscriber %d backed up (%d/%d)", i, st.Len, st.Cap)
					}
				}
			}
		}
	}()

	go sqlWriter.Run(ctx, sqliteCh)
	if pub != nil {
		go pub.RunBars(ctx, redisCh)
		go pub.RunExits(ctx, mgr.Exits())
		// Operators square off by hand with: redis-cli PUBLISH cmd:close <symbol>
		go pub.RunCloseCommands(ctx, mgr.ManualClose)
	}
	go recordFills(ctx, exec, journal)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case bar, ok := <-healthCh:
				if !ok {
					return
				}
				health.SetLastBarTime(bar.TS)
				health.SetOpenPositions(session.OpenCount())
			}
		}
	}()

	// Square-off sweep keeps the deadline honored through bar gaps.
	go mgr.Run(ctx, time.Second)

	// Periodic indicator snapshots make warm restarts cheap.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sqlWriter.SaveSnapshot(ind.Snapshot()); err != nil {
					log.Printf("[trader] snapshot save failed: %v", err)
				}
			}
		}
	}()

	go eng.Run(ctx, engineCh)

	// ---- Tick source ----
	if liveMode {
		runLive(ctx, cfg, health, prom, tickCh)
	} else {
		runSim(ctx, cfg, health, prom, tickCh)
	}

	if syms := session.OpenSymbols(); len(syms) > 0 {
		sort.Strings(syms)
		log.Printf("[trader] WARNING: shutting down with open positions: %s", strings.Join(syms, ", "))
	}
	log.Printf("[trader] done — %d trades, daily P&L %d paise",
		len(session.Exits()), session.DailyPnL())
}

// runSim connects straight to the configured WS URL with no session or
// market-hours gating.
func runSim(ctx context.Context, cfg *config.Config, health *metrics.HealthStatus, prom *metrics.Metrics, tickCh chan model.Tick) {
	f, err := feed.New(feed.Config{URL: cfg.WSURL})
	if err != nil {
		log.Fatalf("[trader] feed init failed: %v", err)
	}
	f.OnReconnect = func() {
		prom.WSReconnects.Inc()
	}
	health.SetWSConnected(true)
	if err := f.Start(ctx, tickCh); err != nil {
		log.Printf("[trader] feed error: %v", err)
	}
	health.SetWSConnected(false)
}

// runLive gates on market hours and establishes a fresh broker session
// each trading day before connecting the tick feed.
func runLive(ctx context.Context, cfg *config.Config, health *metrics.HealthStatus, prom *metrics.Metrics, tickCh chan model.Tick) {
	cfg.RequireBrokerCreds()
	client := broker.NewClient(broker.Config{
		BaseURL: getEnv("BROKER_BASE_URL", "https://apiconnect.broker.example"),
		APIKey:  cfg.BrokerAPIKey,
	})
	sessions := auth.NewManager(auth.Credentials{
		APIKey:     cfg.BrokerAPIKey,
		ClientCode: cfg.BrokerClientCode,
		PIN:        cfg.BrokerPIN,
		TOTPSecret: cfg.BrokerTOTPSecret,
	}, client.Login)

	for {
		now := time.Now()
		if !markethours.IsMarketOpen(now) {
			next := markethours.NextOpen(now)
			wait := next.Sub(now)
			log.Printf("[trader] market closed. %s", markethours.StatusString(now))
			log.Printf("[trader] sleeping %v until next open %s",
				wait.Truncate(time.Second), next.In(markethours.IST).Format("Mon 15:04"))
			health.SetWSConnected(false)

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		log.Println("[trader] market open — establishing broker session...")
		tokens, err := sessions.Login(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[trader] login failed: %v, retrying in 30s", err)
			time.Sleep(30 * time.Second)
			continue
		}

		// Disconnect at market close; the outer loop sleeps until the
		// next session.
		closeTime := markethours.TodayClose(time.Now())
		wsCtx, wsCancel := context.WithDeadline(ctx, closeTime)

		f, err := feed.New(feed.Config{
			URL: cfg.WSURL + "?feed_token=" + tokens.FeedToken,
		})
		if err != nil {
			log.Printf("[trader] feed init failed: %v, retrying in 30s", err)
			wsCancel()
			time.Sleep(30 * time.Second)
			continue
		}
		f.OnReconnect = func() {
			prom.WSReconnects.Inc()
		}

		health.SetWSConnected(true)
		log.Printf("[trader] feed connected — will disconnect at %s",
			closeTime.In(markethours.IST).Format("15:04:05"))

		if err := f.Start(wsCtx, tickCh); err != nil {
			log.Printf("[trader] feed session ended: %v", err)
		}
		wsCancel()
		health.SetWSConnected(false)
		log.Println("[trader] feed disconnected — market close")

		if ctx.Err() != nil {
			return
		}
	}
}

// recordFills drains the paper executor's fill log into the SQLite trade
// journal once per second.
func recordFills(ctx context.Context, exec *execution.PaperExecutor, journal *execution.Journal) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	recorded := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fills := exec.Fills()
			for _, f := range fills[recorded:] {
				if err := journal.RecordFill(f); err != nil {
					log.Printf("[trader] journal write failed: %v", err)
				}
			}
			recorded = len(fills)
		}
	}
}

// buildNotifier assembles alert backends from the environment. With no
// backend configured, alerts only go to the log.
func buildNotifier() notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if token, chat := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"); token != "" && chat != "" {
		backends = append(backends, notification.NewTelegramNotifier(token, chat))
		log.Println("[trader] telegram alerts enabled")
	}
	if url := os.Getenv("ALERT_WEBHOOK_URL"); url != "" {
		backends = append(backends, notification.NewWebhookNotifier(url))
		log.Println("[trader] webhook alerts enabled")
	}
	return notification.NewMultiNotifier(backends...)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
