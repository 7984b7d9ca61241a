package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	app_errors "stockchat/backend/internal/errors"
)

const (
	userAgent  = "Mozilla/5.0 (compatible; stockchat/1.0)"
	dateLayout = "2006-01-02"
)

// balanceSheetTypes are the fundamentals-timeseries series requested for a
// balance sheet. The "annual" prefix is stripped from item names.
var balanceSheetTypes = []string{
	"annualTotalAssets",
	"annualTotalLiabilitiesNetMinorityInterest",
	"annualStockholdersEquity",
	"annualCashAndCashEquivalents",
	"annualTotalDebt",
	"annualCurrentAssets",
	"annualCurrentLiabilities",
	"annualRetainedEarnings",
}

// Client talks to the public Yahoo Finance JSON endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		now:     time.Now,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string   `json:"currency"`
				Symbol             string   `json:"symbol"`
				ShortName          string   `json:"shortName"`
				LongName           string   `json:"longName"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type searchResponse struct {
	News []struct {
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

type timeseriesResponse struct {
	Timeseries struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *yahooError                  `json:"error"`
	} `json:"timeseries"`
}

type timeseriesMeta struct {
	Type []string `json:"type"`
}

type timeseriesPoint struct {
	AsOfDate      string `json:"asOfDate"`
	ReportedValue struct {
		Raw float64 `json:"raw"`
	} `json:"reportedValue"`
}

// NormalizeTicker upper-cases and trims a symbol. An empty symbol is a
// validation error.
func NormalizeTicker(ticker string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return "", fmt.Errorf("%w: ticker is required", app_errors.ErrValidation)
	}
	return symbol, nil
}

// Quote returns the latest close for a ticker along with its display name.
func (c *Client) Quote(ctx context.Context, ticker string) (*Quote, error) {
	symbol, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	resp, err := c.chart(ctx, symbol, url.Values{"range": {"5d"}, "interval": {"1d"}})
	if err != nil {
		return nil, err
	}
	result := resp.Chart.Result[0]

	q := &Quote{
		Symbol:   symbol,
		Name:     result.Meta.ShortName,
		Currency: result.Meta.Currency,
	}
	if q.Name == "" {
		q.Name = result.Meta.LongName
	}

	// Prefer the last recorded close, fall back to the live market price.
	found := false
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				q.Price = *closes[i]
				found = true
				break
			}
		}
	}
	if !found && result.Meta.RegularMarketPrice != nil {
		q.Price = *result.Meta.RegularMarketPrice
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: no price for %s", app_errors.ErrNoData, symbol)
	}
	return q, nil
}

// History returns OHLCV bars for a ticker. A start/end range takes precedence
// over period/interval.
func (c *Client) History(ctx context.Context, ticker string, query HistoryQuery) ([]Bar, error) {
	symbol, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	params, err := query.values()
	if err != nil {
		return nil, err
	}

	resp, err := c.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	series := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closeValue := at(series.Close, i)
		if closeValue == nil {
			continue
		}
		bar := Bar{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *closeValue,
		}
		if v := at(series.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(series.High, i); v != nil {
			bar.High = *v
		}
		if v := at(series.Low, i); v != nil {
			bar.Low = *v
		}
		if i < len(series.Volume) && series.Volume[i] != nil {
			bar.Volume = *series.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// News returns up to limit recent headlines for a ticker.
func (c *Client) News(ctx context.Context, ticker string, limit int) ([]NewsItem, error) {
	symbol, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{
		"q":           {symbol},
		"quotesCount": {"0"},
		"newsCount":   {strconv.Itoa(limit)},
	}
	var resp searchResponse
	if err := c.getJSON(ctx, "/v1/finance/search", params, &resp); err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		item := NewsItem{
			Title:     n.Title,
			Publisher: n.Publisher,
			Link:      n.Link,
		}
		if n.ProviderPublishTime > 0 {
			item.PublishedAt = time.Unix(n.ProviderPublishTime, 0).UTC()
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// BalanceSheet returns the annual balance sheet items of the last five years,
// most recent fiscal year first.
func (c *Client) BalanceSheet(ctx context.Context, ticker string) (*BalanceSheet, error) {
	symbol, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	now := c.now()
	params := url.Values{
		"symbol":  {symbol},
		"type":    {strings.Join(balanceSheetTypes, ",")},
		"period1": {strconv.FormatInt(now.AddDate(-5, 0, 0).Unix(), 10)},
		"period2": {strconv.FormatInt(now.Unix(), 10)},
	}
	var resp timeseriesResponse
	path := "/ws/fundamentals-timeseries/v1/finance/timeseries/" + url.PathEscape(symbol)
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	if resp.Timeseries.Error != nil {
		return nil, fmt.Errorf("%w: %s", app_errors.ErrUpstream, resp.Timeseries.Error.Description)
	}

	byDate := make(map[string]map[string]float64)
	for _, result := range resp.Timeseries.Result {
		var meta timeseriesMeta
		if err := json.Unmarshal(result["meta"], &meta); err != nil || len(meta.Type) == 0 {
			continue
		}
		seriesType := meta.Type[0]
		raw, ok := result[seriesType]
		if !ok {
			continue
		}
		var points []*timeseriesPoint
		if err := json.Unmarshal(raw, &points); err != nil {
			slog.Debug("Skipping malformed balance sheet series", "symbol", symbol, "type", seriesType, "error", err)
			continue
		}
		item := strings.TrimPrefix(seriesType, "annual")
		for _, p := range points {
			if p == nil || p.AsOfDate == "" {
				continue
			}
			if byDate[p.AsOfDate] == nil {
				byDate[p.AsOfDate] = make(map[string]float64)
			}
			byDate[p.AsOfDate][item] = p.ReportedValue.Raw
		}
	}
	if len(byDate) == 0 {
		return nil, fmt.Errorf("%w: no balance sheet for %s", app_errors.ErrNoData, symbol)
	}

	sheet := &BalanceSheet{Symbol: symbol}
	for date, items := range byDate {
		sheet.Periods = append(sheet.Periods, BalanceSheetPeriod{AsOfDate: date, Items: items})
	}
	sort.Slice(sheet.Periods, func(i, j int) bool {
		return sheet.Periods[i].AsOfDate > sheet.Periods[j].AsOfDate
	})
	return sheet, nil
}

func (c *Client) chart(ctx context.Context, symbol string, params url.Values) (*chartResponse, error) {
	var resp chartResponse
	if err := c.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", app_errors.ErrNoData, symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no chart data for %s", app_errors.ErrNoData, symbol)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: market data request failed: %v", app_errors.ErrUpstream, err)
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			slog.Warn("Failed to close market data response body", "error", cErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read market data response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Yahoo answers unknown symbols with a 404 and a JSON error body.
		if err := json.Unmarshal(body, out); err == nil {
			return nil
		}
		return fmt.Errorf("%w: %s", app_errors.ErrNoData, path)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: market data returned status %d: %s", app_errors.ErrUpstream, resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not decode market data response: %w", err)
	}
	return nil
}

func (q HistoryQuery) values() (url.Values, error) {
	if q.Start != "" || q.End != "" {
		start, err := time.Parse(dateLayout, q.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", app_errors.ErrValidation)
		}
		end, err := time.Parse(dateLayout, q.End)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", app_errors.ErrValidation)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("%w: end_date must be after start_date", app_errors.ErrValidation)
		}
		interval := q.Interval
		if interval == "" {
			interval = "1d"
		}
		return url.Values{
			"period1":  {strconv.FormatInt(start.Unix(), 10)},
			"period2":  {strconv.FormatInt(end.Unix(), 10)},
			"interval": {interval},
		}, nil
	}

	period, interval := q.Period, q.Interval
	if period == "" {
		period = DefaultPeriod
	}
	if interval == "" {
		interval = DefaultInterval
	}
	return url.Values{"range": {period}, "interval": {interval}}, nil
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
