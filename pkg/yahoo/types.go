package yahoo

import "time"

// ChartResponse is the envelope returned by the v8 chart endpoint.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta       ChartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"` // unix seconds
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`  // null for bars without trades
			Volume []*float64 `json:"volume"` // null for bars without trades
		} `json:"quote"`
	} `json:"indicators"`
}

type ChartMeta struct {
	Currency            string  `json:"currency"`
	Symbol              string  `json:"symbol"`
	ExchangeName        string  `json:"exchangeName"`
	InstrumentType      string  `json:"instrumentType"`
	RegularMarketTime   int64   `json:"regularMarketTime"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	RegularMarketVolume float64 `json:"regularMarketVolume"`
	ChartPreviousClose  float64 `json:"chartPreviousClose"`
	PreviousClose       float64 `json:"previousClose"`
	DataGranularity     string  `json:"dataGranularity"`
	Range               string  `json:"range"`
}

// Quote is the latest market state of one symbol. A zero LastPrice means the
// source had no usable price.
type Quote struct {
	Symbol        string
	LastPrice     float64
	PreviousClose float64
	Volume        float64
	MarketTime    time.Time
}

// Bar is one point of a close series.
type Bar struct {
	Time   time.Time
	Close  float64
	Volume float64
}
