package aggregator

import "stockstream/pkg/yahoo"

// Timeframe is the historical chart range selected by the client.
type Timeframe string

// TimeframeMeta holds the source request parameters for a Timeframe.
type TimeframeMeta struct {
	Interval yahoo.Interval
	Period   yahoo.Period
}

const (
	Timeframe1Day   Timeframe = "1d"
	Timeframe1Week  Timeframe = "1w"
	Timeframe1Month Timeframe = "1m"
	Timeframe1Year  Timeframe = "1y"

	DefaultTimeframe = Timeframe1Day
)

var timeframes = map[Timeframe]TimeframeMeta{
	Timeframe1Day:   {Interval: yahoo.Interval5Min, Period: yahoo.Period1Day},
	Timeframe1Week:  {Interval: yahoo.Interval15Min, Period: yahoo.Period1Week},
	Timeframe1Month: {Interval: yahoo.IntervalDaily, Period: yahoo.Period1Month},
	Timeframe1Year:  {Interval: yahoo.IntervalDaily, Period: yahoo.Period1Year},
}

// IsValid checks if the Timeframe is a predefined range.
func (t Timeframe) IsValid() bool {
	_, ok := timeframes[t]
	return ok
}

// ParseTimeframe resolves s to a known timeframe. Unknown tokens resolve to
// DefaultTimeframe.
func ParseTimeframe(s string) (Timeframe, TimeframeMeta) {
	tf := Timeframe(s)
	meta, ok := timeframes[tf]
	if !ok {
		return DefaultTimeframe, timeframes[DefaultTimeframe]
	}
	return tf, meta
}
