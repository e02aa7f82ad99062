// Package report turns a session's closed trades into a CSV trade log
// and an aggregate performance summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"adx-systemv1/internal/model"
)

// Summary aggregates realized results across exit events. Monetary
// fields are in paise.
type Summary struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64 // 0..1, 0 when no trades
	TotalPnL     int64
	GrossProfit  int64
	GrossLoss    int64   // positive magnitude
	ProfitFactor float64 // gross profit / gross loss
	MaxWin       int64
	MaxLoss      int64 // most negative PnL, <= 0
	ByReason     map[model.ExitReason]int
}

// Summarize computes the summary over the given exits.
func Summarize(exits []model.ExitEvent) Summary {
	s := Summary{ByReason: make(map[model.ExitReason]int)}
	for _, ev := range exits {
		s.Trades++
		s.TotalPnL += ev.PnL
		s.ByReason[ev.Reason]++
		switch {
		case ev.PnL > 0:
			s.Wins++
			s.GrossProfit += ev.PnL
			if ev.PnL > s.MaxWin {
				s.MaxWin = ev.PnL
			}
		case ev.PnL < 0:
			s.Losses++
			s.GrossLoss += -ev.PnL
			if ev.PnL < s.MaxLoss {
				s.MaxLoss = ev.PnL
			}
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = float64(s.GrossProfit) / float64(s.GrossLoss)
	} else if s.GrossProfit > 0 {
		s.ProfitFactor = float64(s.GrossProfit) // no losses; report gross as-is
	}
	return s
}

// WriteCSV writes one row per exit, oldest first, with a header row.
// Prices are formatted in rupees for readability; PnL stays in paise.
func WriteCSV(w io.Writer, exits []model.ExitEvent) error {
	sorted := make([]model.ExitEvent, len(exits))
	copy(sorted, exits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.Before(sorted[j].ExitTime)
	})

	cw := csv.NewWriter(w)
	header := []string{
		"symbol", "direction", "qty",
		"entry_time", "entry_price",
		"exit_time", "exit_price",
		"reason", "pnl_paise",
		"entry_di_plus", "entry_di_minus", "entry_adx",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, ev := range sorted {
		p := ev.Position
		row := []string{
			p.Symbol,
			string(p.Direction),
			strconv.FormatInt(p.Qty, 10),
			p.EntryTime.Format("2006-01-02 15:04:05"),
			paiseToRupees(p.EntryPrice),
			ev.ExitTime.Format("2006-01-02 15:04:05"),
			paiseToRupees(ev.ExitPrice),
			string(ev.Reason),
			strconv.FormatInt(ev.PnL, 10),
			strconv.FormatFloat(p.EntryDIPlus, 'f', 2, 64),
			strconv.FormatFloat(p.EntryDIMinus, 'f', 2, 64),
			strconv.FormatFloat(p.EntryADX, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func paiseToRupees(p int64) string {
	return fmt.Sprintf("%d.%02d", p/100, abs(p%100))
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
