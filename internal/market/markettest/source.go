// Package markettest provides an in-memory market.PriceSource for tests.
package markettest

import (
	"context"
	"errors"
	"sync"

	"stockstream/pkg/yahoo"
)

// ErrUnavailable is returned for symbols the fake knows nothing about.
var ErrUnavailable = errors.New("fake source: symbol unavailable")

// Source serves canned quotes and histories. Unknown symbols fail with
// ErrUnavailable.
type Source struct {
	mu        sync.Mutex
	quotes    map[string]*yahoo.Quote
	histories map[string][]yahoo.Bar
	errs      map[string]error
	calls     map[string]int

	// LastInterval and LastPeriod record the most recent GetHistory request.
	LastInterval yahoo.Interval
	LastPeriod   yahoo.Period
}

func NewSource() *Source {
	return &Source{
		quotes:    make(map[string]*yahoo.Quote),
		histories: make(map[string][]yahoo.Bar),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// SetQuote registers a quote for symbol.
func (s *Source) SetQuote(symbol string, last, prevClose float64) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = &yahoo.Quote{Symbol: symbol, LastPrice: last, PreviousClose: prevClose}
	return s
}

// SetError makes every request for symbol fail with err.
func (s *Source) SetError(symbol string, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[symbol] = err
	return s
}

// SetHistory registers the close series returned for symbol.
func (s *Source) SetHistory(symbol string, bars []yahoo.Bar) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[symbol] = bars
	return s
}

// Calls returns how many requests were made for symbol.
func (s *Source) Calls(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

func (s *Source) GetQuote(ctx context.Context, symbol string) (*yahoo.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	q, ok := s.quotes[symbol]
	if !ok {
		return nil, ErrUnavailable
	}
	cp := *q
	return &cp, nil
}

func (s *Source) GetHistory(ctx context.Context, symbol string, interval yahoo.Interval, period yahoo.Period) ([]yahoo.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	s.LastInterval, s.LastPeriod = interval, period
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	bars, ok := s.histories[symbol]
	if !ok {
		return nil, ErrUnavailable
	}
	return append([]yahoo.Bar(nil), bars...), nil
}
