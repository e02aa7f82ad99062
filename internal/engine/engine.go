// Package engine wires the per-bar pipeline: indicator update, signal
// detection, then position lifecycle. One Engine instance processes all
// symbols; bars must arrive in (timestamp, symbol) order for live and
// replay runs to reach identical decisions.
package engine

import (
	"context"
	"log"
	"log/slog"
	"time"

	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/logger"
	"adx-systemv1/internal/metrics"
	"adx-systemv1/internal/model"
	"adx-systemv1/internal/notification"
	"adx-systemv1/internal/position"
	"adx-systemv1/internal/signal"
	redisstore "adx-systemv1/internal/store/redis"
)

// Config collects the pipeline stages. Metrics, Publisher and Notifier
// are optional; the backtester runs without any of them.
type Config struct {
	Indicator *indicator.Engine
	Detector  *signal.Detector
	Positions *position.Manager
	Metrics   *metrics.Metrics
	Publisher *redisstore.Publisher
	Notifier  notification.Notifier
}

// Stats are cumulative pipeline counters, read after a run completes.
type Stats struct {
	BarsProcessed  int
	SignalsEmitted int
	SignalsTaken   int // signals that reached the position manager
	Rejections     map[signal.RejectReason]int
}

type Engine struct {
	ind *indicator.Engine
	det *signal.Detector
	pos *position.Manager
	m   *metrics.Metrics
	pub *redisstore.Publisher
	not notification.Notifier

	stats     Stats
	seenExits int
}

func New(cfg Config) *Engine {
	return &Engine{
		ind: cfg.Indicator,
		det: cfg.Detector,
		pos: cfg.Positions,
		m:   cfg.Metrics,
		pub: cfg.Publisher,
		not: cfg.Notifier,
		stats: Stats{
			Rejections: make(map[signal.RejectReason]int),
		},
	}
}

// OnBar advances the whole pipeline by one bar. Exit conditions on the
// open position are evaluated before any new signal from the same bar,
// so a stop breach and a fresh crossover on one bar close the old
// position first.
func (e *Engine) OnBar(ctx context.Context, bar model.Bar) {
	start := time.Now()
	res := e.ind.Process(bar)
	if e.m != nil {
		e.m.IndicatorComputeDur.Observe(time.Since(start).Seconds())
		e.m.BarsTotal.Inc()
	}
	e.stats.BarsProcessed++

	e.pos.OnBar(ctx, bar)
	// The bar only advanced its own symbol's state machine; the sweep
	// catches positions on symbols whose data has gone quiet once the
	// clock crosses the square-off deadline. No-op before the deadline.
	e.pos.Sweep(ctx)

	sig, reason := e.det.OnBar(bar, res.Values)
	if sig == nil {
		if reason != signal.RejectNone {
			e.stats.Rejections[reason]++
			if e.m != nil {
				e.m.SignalsRejected.WithLabelValues(string(reason)).Inc()
			}
		}
		e.afterBar(ctx)
		return
	}

	e.stats.SignalsEmitted++
	if e.m != nil {
		e.m.SignalsEmitted.WithLabelValues(string(sig.Direction)).Inc()
	}

	// Trace ID ties the signal to every downstream order and exit log.
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(sig.Symbol, sig.TS))
	slog.Info("signal accepted", append([]any{
		slog.String("symbol", sig.Symbol),
		slog.String("direction", string(sig.Direction)),
		slog.Float64("adx", sig.ADX),
		slog.Float64("confidence", sig.Confidence),
	}, logger.LogWithTrace(ctx)...)...)

	if e.pub != nil {
		e.pub.PublishSignal(ctx, sig)
	}
	e.notify(ctx, notification.SignalAlert(sig))

	before := e.pos.Session().OpenCount()
	e.pos.OnSignal(ctx, sig)
	if e.pos.Session().OpenCount() > before {
		e.stats.SignalsTaken++
		if e.m != nil {
			e.m.PositionsOpened.WithLabelValues(string(sig.Direction)).Inc()
		}
	}
	e.afterBar(ctx)
}

// afterBar refreshes gauges and the published position snapshots, and
// counts any exits the bar produced.
func (e *Engine) afterBar(ctx context.Context) {
	exits := e.pos.Session().Exits()
	for _, ev := range exits[e.seenExits:] {
		if e.m != nil {
			e.m.PositionsClosed.WithLabelValues(string(ev.Reason)).Inc()
		}
		e.notify(ctx, notification.ExitAlert(ev))
	}
	if e.m != nil {
		e.m.OpenPositions.Set(float64(e.pos.Session().OpenCount()))
		e.m.DailyPnL.Set(float64(e.pos.Session().DailyPnL()))
	}
	e.seenExits = len(exits)
	if e.pub != nil {
		e.pub.PublishPositions(ctx, e.pos.Snapshots())
	}
}

// notify delivers an alert off the bar-processing path.
func (e *Engine) notify(ctx context.Context, alert notification.Alert) {
	if e.not == nil {
		return
	}
	go e.not.Send(ctx, alert)
}

// Run consumes bars until the channel closes or the context ends.
func (e *Engine) Run(ctx context.Context, barCh <-chan model.Bar) {
	log.Println("[engine] pipeline running")
	for {
		select {
		case <-ctx.Done():
			log.Println("[engine] context done, stopping")
			return
		case bar, ok := <-barCh:
			if !ok {
				log.Printf("[engine] bar channel closed after %d bars", e.stats.BarsProcessed)
				return
			}
			e.OnBar(ctx, bar)
		}
	}
}

// Stats returns a copy of the cumulative counters.
func (e *Engine) Stats() Stats {
	out := e.stats
	out.Rejections = make(map[signal.RejectReason]int, len(e.stats.Rejections))
	for k, v := range e.stats.Rejections {
		out.Rejections[k] = v
	}
	return out
}
