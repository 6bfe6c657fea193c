package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNoData is returned when the API answered but had nothing usable for the symbol.
var ErrNoData = errors.New("yahoo: no data")

// APIError is a non-retryable HTTP or chart-level error.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("yahoo api error %d: %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("yahoo api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
}

type Option func(*Client)

// WithMaxRetries sets how many times a transport error, 429 or 5xx is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithUserAgent overrides the User-Agent header. The chart API rejects Go's default.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt i waits base*i*i.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  DefaultUserAgent,
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetQuote returns the latest price, previous close and volume of symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	result, err := c.chart(ctx, symbol, string(IntervalDaily), "1d")
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}

	q := &Quote{
		Symbol:        symbol,
		LastPrice:     meta.RegularMarketPrice,
		PreviousClose: prev,
		Volume:        meta.RegularMarketVolume,
	}
	if meta.RegularMarketTime > 0 {
		q.MarketTime = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return q, nil
}

// GetHistory returns the chronological close series of symbol. Bars with a
// null close are dropped.
func (c *Client) GetHistory(ctx context.Context, symbol string, interval Interval, period Period) ([]Bar, error) {
	if !interval.IsValid() {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}
	rangeParam, err := period.RangeParam()
	if err != nil {
		return nil, err
	}

	result, err := c.chart(ctx, symbol, string(interval), rangeParam)
	if err != nil {
		return nil, err
	}

	return parseBars(result), nil
}

func parseBars(result *ChartResult) []Bar {
	if len(result.Indicators.Quote) == 0 {
		return []Bar{}
	}
	quote := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	return bars
}

// chart fetches /v8/finance/chart/{symbol} and returns its first result.
func (c *Client) chart(ctx context.Context, symbol, interval, rangeParam string) (*ChartResult, error) {
	params := url.Values{}
	params.Set("interval", interval)
	params.Set("range", rangeParam)
	params.Set("includePrePost", "false")

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}

	var resp ChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Code:       resp.Chart.Error.Code,
			Message:    resp.Chart.Error.Description,
		}
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	return &resp.Chart.Result[0], nil
}

// get performs a GET with retries on transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(attempt*attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		// Construct the GET request with context for timeout/cancel support
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: string(body)}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// 404 for unknown symbols still carries a chart.error body
			var chartResp ChartResponse
			if json.Unmarshal(body, &chartResp) == nil && chartResp.Chart.Error != nil {
				return nil, &APIError{
					StatusCode: resp.StatusCode,
					Code:       chartResp.Chart.Error.Code,
					Message:    chartResp.Chart.Error.Description,
				}
			}
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
