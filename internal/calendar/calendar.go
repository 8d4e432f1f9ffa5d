// Package calendar answers trading-day and session-window questions in the
// exchange timezone.
package calendar

import (
	"fmt"
	"time"

	"pivot-itm-bot/internal/store"
)

type Calendar struct {
	loc      *time.Location
	session  store.Session
	holidays map[string]bool
}

func New(cfg *store.Config) (*Calendar, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	h := make(map[string]bool, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", d, err)
		}
		h[d] = true
	}
	return &Calendar{loc: loc, session: cfg.Session, holidays: h}, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Local converts t to the exchange timezone.
func (c *Calendar) Local(t time.Time) time.Time { return t.In(c.loc) }

// DateKey is the YYYY-MM-DD calendar date of t in the exchange timezone.
func (c *Calendar) DateKey(t time.Time) string { return c.Local(t).Format("2006-01-02") }

func (c *Calendar) IsHoliday(t time.Time) bool { return c.holidays[c.DateKey(t)] }

// IsTradingDay is false on weekends and configured holidays.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	switch c.Local(t).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(t)
}

// InSession is true between market open and close, both inclusive.
func (c *Calendar) InSession(t time.Time) bool {
	lt := c.Local(t)
	return !lt.Before(c.session.MarketOpen.On(lt)) && !lt.After(c.session.MarketClose.On(lt))
}

// BeforeOpen is true earlier in the day than market open.
func (c *Calendar) BeforeOpen(t time.Time) bool {
	lt := c.Local(t)
	return lt.Before(c.session.MarketOpen.On(lt))
}

// IsMarketOpen combines the trading-day and session checks.
func (c *Calendar) IsMarketOpen(t time.Time) bool {
	return c.IsTradingDay(t) && c.InSession(t)
}

func (c *Calendar) BiasWindow(t time.Time) (start, end time.Time) {
	lt := c.Local(t)
	return c.session.BiasCandleStart.On(lt), c.session.BiasCandleEnd.On(lt)
}

// BiasWindowClosed is true once the opening-range candle has ended.
func (c *Calendar) BiasWindowClosed(t time.Time) bool {
	_, end := c.BiasWindow(t)
	return !c.Local(t).Before(end)
}

func (c *Calendar) PastEntryCutoff(t time.Time) bool {
	lt := c.Local(t)
	return !lt.Before(c.session.EntryCutoff.On(lt))
}

func (c *Calendar) PastEODExit(t time.Time) bool {
	lt := c.Local(t)
	return !lt.Before(c.session.EODExit.On(lt))
}

// PreviousTradingDay walks back from the day before t, skipping weekends and holidays.
func (c *Calendar) PreviousTradingDay(t time.Time) time.Time {
	d := c.Local(t)
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
	for i := 0; i < 15; i++ {
		d = d.AddDate(0, 0, -1)
		if c.IsTradingDay(d) {
			return d
		}
	}
	return d
}
