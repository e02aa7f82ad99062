// Package markethours provides the NSE intraday session calendar: market
// open/close, the mandatory square-off deadline, and the signal-generation
// cutoff. All deadlines are expressed in IST and resolved against an
// injected "now" so the same code serves live trading and replay.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Market hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// TimeOfDay is a wall-clock deadline within a trading day (IST).
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// String returns the "HH:MM" form.
func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// Before reports whether d falls strictly earlier in the day than other.
func (d TimeOfDay) Before(other TimeOfDay) bool {
	return d.Hour*60+d.Minute < other.Hour*60+other.Minute
}

// On anchors the deadline to the calendar day of t, in IST.
func (d TimeOfDay) On(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), d.Hour, d.Minute, 0, 0, IST)
}

// Reached reports whether t is at or past the deadline on t's own day.
func (d TimeOfDay) Reached(t time.Time) bool {
	return !t.In(IST).Before(d.On(t))
}

// IsMarketOpen returns true if t falls within NSE trading hours
// (9:15 AM – 3:30 PM IST, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// TodayOpen returns the market open time on t's day (9:15 AM IST).
func TodayOpen(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), OpenHour, OpenMinute, 0, 0, IST)
}

// TodayClose returns the market close time on t's day (3:30 PM IST).
func TodayClose(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

// NextOpen returns the next market open (9:15 AM IST on the next trading day).
// If t is before today's open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)

	todayOpen := TodayOpen(ist)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}

	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // holidays + weekends never exceed this span
		if IsTradingDay(d) {
			return TodayOpen(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return TodayOpen(ist.AddDate(0, 0, 1))
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(TodayClose(t).Sub(t.In(IST))))
	}
	next := NextOpen(t)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
