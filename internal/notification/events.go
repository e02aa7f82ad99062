package notification

import (
	"fmt"

	"adx-systemv1/internal/model"
)

// SignalAlert formats a qualified crossover signal.
func SignalAlert(sig *model.Signal) Alert {
	return Alert{
		Level:  AlertInfo,
		Event:  EventSignal,
		Symbol: sig.Symbol,
		Title:  fmt.Sprintf("%s %s signal", sig.Symbol, sig.Direction),
		Message: fmt.Sprintf(
			"entry ₹%.2f  +DI %.1f  -DI %.1f  ADX %.1f  confidence %.2f",
			float64(sig.EntryPrice)/100, sig.DIPlus, sig.DIMinus, sig.ADX, sig.Confidence),
		Fields: map[string]string{
			"direction":  string(sig.Direction),
			"entry":      rupees(sig.EntryPrice),
			"di_plus":    fmt.Sprintf("%.1f", sig.DIPlus),
			"di_minus":   fmt.Sprintf("%.1f", sig.DIMinus),
			"adx":        fmt.Sprintf("%.1f", sig.ADX),
			"confidence": fmt.Sprintf("%.2f", sig.Confidence),
		},
	}
}

// ExitAlert formats a closed position. Losing trades and square-offs
// are raised to WARNING so they stand out in the channel.
func ExitAlert(ev model.ExitEvent) Alert {
	level := AlertInfo
	if ev.PnL < 0 || ev.Reason == model.ExitSquareOff {
		level = AlertWarning
	}
	return Alert{
		Level:  level,
		Event:  EventExit,
		Symbol: ev.Position.Symbol,
		Title:  fmt.Sprintf("%s closed (%s)", ev.Position.Symbol, ev.Reason),
		Message: fmt.Sprintf(
			"%s %d @ ₹%.2f → ₹%.2f  P&L ₹%.2f",
			ev.Position.Direction, ev.Position.Qty,
			float64(ev.Position.EntryPrice)/100,
			float64(ev.ExitPrice)/100,
			float64(ev.PnL)/100),
		Fields: map[string]string{
			"direction": string(ev.Position.Direction),
			"qty":       fmt.Sprintf("%d", ev.Position.Qty),
			"entry":     rupees(ev.Position.EntryPrice),
			"exit":      rupees(ev.ExitPrice),
			"reason":    string(ev.Reason),
			"pnl":       rupees(ev.PnL),
		},
	}
}

// DeadlineAlert reports a position still open past the square-off
// deadline after a failed exit. This always needs human attention.
func DeadlineAlert(symbol string) Alert {
	return Alert{
		Level:   AlertCritical,
		Event:   EventDeadlineMiss,
		Symbol:  symbol,
		Title:   fmt.Sprintf("%s still open past square-off", symbol),
		Message: "exit order rejected at the deadline; manual intervention required",
	}
}

func rupees(paise int64) string {
	return fmt.Sprintf("%.2f", float64(paise)/100)
}
