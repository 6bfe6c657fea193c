package yahoo

import "fmt"

// Interval is the bar width requested from the chart API.
type Interval string

// Period is the lookback window requested from the chart API.
type Period string

const (
	Interval5Min  Interval = "5m"
	Interval15Min Interval = "15m"
	Interval1Hour Interval = "1h"
	IntervalDaily Interval = "1d"

	Period1Day   Period = "1d"
	Period1Week  Period = "1wk"
	Period1Month Period = "1mo"
	Period1Year  Period = "1y"
)

// chartRanges maps a Period to the range token the chart API understands.
// The API has no weekly range; five trading days cover one week.
var chartRanges = map[Period]string{
	Period1Day:   "1d",
	Period1Week:  "5d",
	Period1Month: "1mo",
	Period1Year:  "1y",
}

var validIntervals = map[Interval]struct{}{
	Interval5Min:  {},
	Interval15Min: {},
	Interval1Hour: {},
	IntervalDaily: {},
}

// IsValid checks if the Interval is one of the predefined bar widths.
func (i Interval) IsValid() bool {
	_, ok := validIntervals[i]
	return ok
}

// RangeParam returns the chart API range token for p.
func (p Period) RangeParam() (string, error) {
	r, ok := chartRanges[p]
	if !ok {
		return "", fmt.Errorf("invalid period: %s", p)
	}
	return r, nil
}
