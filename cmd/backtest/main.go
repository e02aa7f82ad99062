// cmd/backtest replays stored bars through the full signal and position
// pipeline on a simulated clock. Because the pipeline reads time only
// through the clock, a replayed session reaches the same entries, stops
// and square-offs the live engine would have.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/bars.db --speed=0 --csv=trades.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adx-systemv1/config"
	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/engine"
	"adx-systemv1/internal/execution"
	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/logger"
	"adx-systemv1/internal/marketdata/replay"
	"adx-systemv1/internal/markethours"
	"adx-systemv1/internal/model"
	"adx-systemv1/internal/portfolio"
	"adx-systemv1/internal/position"
	"adx-systemv1/internal/report"
	signalpkg "adx-systemv1/internal/signal"
	sqlitestore "adx-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("backtest", slog.LevelInfo)

	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite bar database")
	symbol := flag.String("symbol", "", "Replay only this symbol (default: all)")
	csvPath := flag.String("csv", "", "Write the trade log CSV to this path")
	flag.Parse()

	cfg := config.Load()

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	// The sim clock starts at zero; the replayer advances it to each
	// bar's close before the bar is processed.
	clk := clock.NewSim(time.Unix(0, 0).In(markethours.IST))

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

	eng := engine.New(engine.Config{
		Indicator: indicator.NewEngine(cfg.DIPeriod),
		Detector:  det,
		Positions: mgr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	src := &sqlitestore.Source{Reader: reader, Interval: cfg.BarInterval, Symbol: *symbol}
	replayer := replay.New(src, clk)
	barCh := make(chan model.Bar, 10000)

	go func() {
		if err := replayer.Run(ctx, *fromTS, *speed, barCh); err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(barCh)
	}()

	eng.Run(ctx, barCh)

	// Positions the data ran out on are squared off at the session
	// deadline, not at some later synthetic time. Set never rewinds, so
	// this is a no-op when the replay already crossed the deadline.
	clk.Set(cfg.SquareOffTime.On(clk.Now()))
	mgr.Sweep(ctx)

	stats := eng.Stats()
	exits := session.Exits()
	summary := report.Summarize(exits)

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars processed:    %-16d ║\n", stats.BarsProcessed)
	fmt.Printf("║  Signals emitted:   %-16d ║\n", stats.SignalsEmitted)
	fmt.Printf("║  Positions taken:   %-16d ║\n", stats.SignalsTaken)
	fmt.Printf("║  Trades closed:     %-16d ║\n", summary.Trades)
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", summary.WinRate*100))
	fmt.Printf("║  Total P&L:         %-16s ║\n", fmt.Sprintf("₹%.2f", float64(summary.TotalPnL)/100))
	fmt.Printf("║  Profit factor:     %-16.2f ║\n", summary.ProfitFactor)
	fmt.Println("╚══════════════════════════════════════╝")

	if len(stats.Rejections) > 0 {
		fmt.Println("\nRejections:")
		for reason, n := range stats.Rejections {
			fmt.Printf("  %-28s %d\n", reason, n)
		}
	}
	if len(summary.ByReason) > 0 {
		fmt.Println("\nExits:")
		for reason, n := range summary.ByReason {
			fmt.Printf("  %-28s %d\n", reason, n)
		}
	}

	if *csvPath != "" && len(exits) > 0 {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatalf("[backtest] csv create failed: %v", err)
		}
		if err := report.WriteCSV(f, exits); err != nil {
			log.Fatalf("[backtest] csv write failed: %v", err)
		}
		f.Close()
		log.Printf("[backtest] trade log written to %s", *csvPath)
	}
}
