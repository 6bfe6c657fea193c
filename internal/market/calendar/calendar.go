// Package calendar answers whether the exchange behind a symbol is open.
package calendar

import (
	"strings"
	"sync"
	"time"

	"github.com/scmhub/calendar"
)

// MarketHours reports the trading state of a symbol's exchange.
type MarketHours interface {
	IsOpen(symbol string, t time.Time) bool
}

// ExchangeCalendar maps symbols to ISO 10383 exchange calendars.
type ExchangeCalendar struct {
	mu   sync.Mutex
	cals map[string]*calendar.Calendar
}

func New() *ExchangeCalendar {
	return &ExchangeCalendar{cals: make(map[string]*calendar.Calendar)}
}

// micFor picks the exchange for a Yahoo-style symbol. US listings and
// indices default to NYSE.
func micFor(symbol string) string {
	switch {
	case symbol == "^IXIC" || symbol == "^NDX":
		return "xnas"
	case strings.HasSuffix(symbol, ".L"):
		return "xlon"
	case strings.HasSuffix(symbol, ".DE"):
		return "xfra"
	case strings.HasSuffix(symbol, ".T"):
		return "xtks"
	case strings.HasSuffix(symbol, ".HK"):
		return "xhkg"
	case strings.HasSuffix(symbol, ".KS"):
		return "xkrx"
	}
	return "xnys"
}

// IsOpen reports whether symbol trades at t. Crypto pairs never close.
func (c *ExchangeCalendar) IsOpen(symbol string, t time.Time) bool {
	if strings.HasSuffix(symbol, "-USD") {
		return true
	}

	cal := c.calendarFor(micFor(symbol))
	if cal == nil {
		return fallbackOpen(t)
	}
	return cal.IsOpen(t.In(cal.Loc))
}

func (c *ExchangeCalendar) calendarFor(mic string) *calendar.Calendar {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cal, ok := c.cals[mic]; ok {
		return cal
	}
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	c.cals[mic] = cal
	return cal
}

// fallbackOpen approximates NYSE regular hours, Mon-Fri 09:30-16:00 New York.
func fallbackOpen(t time.Time) bool {
	if ny, err := time.LoadLocation("America/New_York"); err == nil {
		t = t.In(ny)
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+30 && mins < 16*60
}
