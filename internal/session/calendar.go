// Package session owns the ODR/RDR/ADR clock: the range windows where DR/IDR
// levels form and the trading windows where confirmations may be acted on.
// All times are Eastern.
package session

import (
	"fmt"
	"time"

	"github.com/quantex/qx-algo/pkg/model"
)

var eastern *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("failed to load America/New_York tz: " + err.Error())
	}
	eastern = loc
}

// Eastern returns the US Eastern location used for all session logic.
func Eastern() *time.Location {
	return eastern
}

// TimeOfDay is a wall-clock time within an ET day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On anchors the time-of-day to the given date in ET.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, eastern)
}

// Window is a [Start, End) wall-clock interval. Windows where Start > End
// cross midnight (ADR trading).
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether the ET time t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	m := t.In(eastern).Hour()*60 + t.In(eastern).Minute()
	if w.Start.Minutes() <= w.End.Minutes() {
		return m >= w.Start.Minutes() && m < w.End.Minutes()
	}
	// Overnight window
	return m >= w.Start.Minutes() || m < w.End.Minutes()
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Range windows: where DR/IDR levels form. The end is the open time of the
// last bar counted into the range (5-minute bars), inclusive.
var rangeWindows = map[model.Session]Window{
	model.SessionRDR: {Start: TimeOfDay{9, 30}, End: TimeOfDay{10, 25}},
	model.SessionODR: {Start: TimeOfDay{3, 0}, End: TimeOfDay{3, 55}},
	model.SessionADR: {Start: TimeOfDay{19, 30}, End: TimeOfDay{20, 25}},
}

// Trading windows: where confirmations are detected and traded.
var tradingWindows = map[model.Session]Window{
	model.SessionODR: {Start: TimeOfDay{4, 0}, End: TimeOfDay{8, 0}},
	model.SessionRDR: {Start: TimeOfDay{10, 30}, End: TimeOfDay{16, 0}},
	model.SessionADR: {Start: TimeOfDay{20, 30}, End: TimeOfDay{1, 0}},
}

// RangeWindow returns the DR/IDR formation window for a session.
func RangeWindow(s model.Session) Window {
	return rangeWindows[s]
}

// TradingWindow returns the confirmation/trading window for a session.
func TradingWindow(s model.Session) Window {
	return tradingWindows[s]
}

// Current returns the session whose trading window contains now, if any.
func Current(now time.Time) (model.Session, Window, bool) {
	et := now.In(eastern)
	for _, s := range model.Sessions {
		w := tradingWindows[s]
		if w.Contains(et) {
			return s, w, true
		}
	}
	return "", Window{}, false
}

// Date returns the session date (the range-formation day) for a session at
// the given instant. ADR trades across midnight: between 00:00 and 01:00 ET
// the session formed on the previous calendar day.
func Date(s model.Session, now time.Time) time.Time {
	et := now.In(eastern)
	if s == model.SessionADR && et.Hour() < 1 {
		et = et.AddDate(0, 0, -1)
	}
	return time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, eastern)
}

// RangeComplete reports whether the range window for the session has finished
// forming at the given instant (the trading side must not act before this).
func RangeComplete(s model.Session, now time.Time) bool {
	et := now.In(eastern)
	end := rangeWindows[s].End
	m := et.Hour()*60 + et.Minute()
	if s == model.SessionADR && et.Hour() < 1 {
		// Past midnight inside ADR trading: range completed yesterday evening.
		return true
	}
	return m >= end.Minutes()
}

// TradingWindowBounds anchors a session's trading window to absolute ET times
// for the given session date, handling the ADR midnight crossing.
func TradingWindowBounds(s model.Session, sessionDate time.Time) (time.Time, time.Time) {
	w := tradingWindows[s]
	start := w.Start.On(sessionDate)
	endDate := sessionDate
	if w.Start.Minutes() > w.End.Minutes() {
		endDate = sessionDate.AddDate(0, 0, 1)
	}
	end := w.End.On(endDate)
	return start, end
}
