package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"stockchat/backend/internal/chart"
	app_errors "stockchat/backend/internal/errors"
	"stockchat/backend/internal/market"
)

const (
	newsLimit     = 5
	movingAverage = 20
)

// MarketData is the market data source used by the stock tools.
type MarketData interface {
	Quote(ctx context.Context, ticker string) (*market.Quote, error)
	History(ctx context.Context, ticker string, query market.HistoryQuery) ([]market.Bar, error)
	News(ctx context.Context, ticker string, limit int) ([]market.NewsItem, error)
	BalanceSheet(ctx context.Context, ticker string) (*market.BalanceSheet, error)
}

// ChartRenderer turns bars into a PNG.
type ChartRenderer interface {
	Render(ticker string, bars []market.Bar) ([]byte, error)
}

type tickerArgs struct {
	Ticker string `json:"ticker"`
}

type historyArgs struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type chartArgs struct {
	Ticker   string `json:"ticker"`
	Period   string `json:"period"`
	Interval string `json:"interval"`
}

func tickerSchema(extra map[string]any, required ...string) map[string]any {
	props := map[string]any{
		"ticker": map[string]any{"type": "string", "description": "Stock ticker symbol, e.g. AAPL"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   append([]string{"ticker"}, required...),
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// RegisterStockTools registers the market tools on reg.
func RegisterStockTools(reg *Registry, data MarketData, renderer ChartRenderer) error {
	s := &stockTools{data: data, renderer: renderer}
	all := []Tool{
		{
			Name:        "get_stock_price",
			Description: "A function that returns the current stock price based on a ticker symbol.",
			Parameters:  tickerSchema(nil),
			Handler:     s.price,
		},
		{
			Name:        "get_historical_stock_price",
			Description: "A function that returns the current stock price over time based on a ticker symbol and a start and end date.",
			Parameters: tickerSchema(map[string]any{
				"start_date": stringProp("Start date, YYYY-MM-DD"),
				"end_date":   stringProp("End date (exclusive), YYYY-MM-DD"),
			}, "start_date", "end_date"),
			Handler: s.history,
		},
		{
			Name:        "get_balance_sheet",
			Description: "A function that returns the balance sheet based on a ticker symbol.",
			Parameters:  tickerSchema(nil),
			Handler:     s.balanceSheet,
		},
		{
			Name:        "get_stock_news",
			Description: "A function that returns news based on a ticker symbol.",
			Parameters:  tickerSchema(nil),
			Handler:     s.news,
		},
		{
			Name:        "render_stock_chart",
			Description: "Render a price chart for a ticker over a given period. Returns a data URI (PNG).",
			Parameters: tickerSchema(map[string]any{
				"period":   stringProp("Lookback period such as 1mo, 6mo, 1y. Defaults to 6mo"),
				"interval": stringProp("Sample interval such as 1d or 1wk. Defaults to 1d"),
			}),
			Handler: s.chart,
		},
		{
			Name:        "analyze_stock",
			Description: "Summarize recent price action for a ticker: change, range, average and moving-average position.",
			Parameters: tickerSchema(map[string]any{
				"period": stringProp("Lookback period such as 1mo, 6mo, 1y. Defaults to 6mo"),
			}),
			Handler: s.analyze,
		},
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

type stockTools struct {
	data     MarketData
	renderer ChartRenderer
}

func decodeArgs(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: invalid tool arguments: %v", app_errors.ErrValidation, err)
	}
	return nil
}

func (s *stockTools) price(ctx context.Context, raw json.RawMessage) (string, error) {
	var args tickerArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	symbol := strings.ToUpper(strings.TrimSpace(args.Ticker))

	q, err := s.data.Quote(ctx, args.Ticker)
	if errors.Is(err, app_errors.ErrNoData) {
		return fmt.Sprintf("No price data available for %s.", symbol), nil
	}
	if err != nil {
		return "", err
	}

	formatted := FormatUSD(q.Price)
	if q.Name != "" {
		return fmt.Sprintf("The current stock price of %s (%s) is %s.", q.Name, q.Symbol, formatted), nil
	}
	return fmt.Sprintf("The current stock price of %s is %s.", q.Symbol, formatted), nil
}

func (s *stockTools) history(ctx context.Context, raw json.RawMessage) (string, error) {
	var args historyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	bars, err := s.data.History(ctx, args.Ticker, market.HistoryQuery{Start: args.StartDate, End: args.EndDate})
	if errors.Is(err, app_errors.ErrNoData) || (err == nil && len(bars) == 0) {
		return fmt.Sprintf("No price data available for %s.", strings.ToUpper(args.Ticker)), nil
	}
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(bars)
	if err != nil {
		return "", fmt.Errorf("could not encode history: %w", err)
	}
	return string(out), nil
}

func (s *stockTools) balanceSheet(ctx context.Context, raw json.RawMessage) (string, error) {
	var args tickerArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	sheet, err := s.data.BalanceSheet(ctx, args.Ticker)
	if errors.Is(err, app_errors.ErrNoData) {
		return fmt.Sprintf("No balance sheet data available for %s.", strings.ToUpper(args.Ticker)), nil
	}
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(sheet)
	if err != nil {
		return "", fmt.Errorf("could not encode balance sheet: %w", err)
	}
	return string(out), nil
}

func (s *stockTools) news(ctx context.Context, raw json.RawMessage) (string, error) {
	var args tickerArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	symbol := strings.ToUpper(strings.TrimSpace(args.Ticker))

	items, err := s.data.News(ctx, args.Ticker, newsLimit)
	if err != nil && !errors.Is(err, app_errors.ErrNoData) {
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("No recent news found for %s.", symbol), nil
	}

	lines := []string{fmt.Sprintf("Here are the latest updates for %s:", symbol)}
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = "No title"
		}
		provider := it.Publisher
		if provider == "" {
			provider = "Unknown source"
		}
		timeStr := ""
		if !it.PublishedAt.IsZero() {
			timeStr = "[" + it.PublishedAt.Format(time.RFC3339) + "] "
		}
		if it.Link != "" {
			lines = append(lines, fmt.Sprintf("- %s%s (%s) — %s", timeStr, title, provider, it.Link))
		} else {
			lines = append(lines, fmt.Sprintf("- %s%s (%s)", timeStr, title, provider))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (s *stockTools) chart(ctx context.Context, raw json.RawMessage) (string, error) {
	var args chartArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	bars, err := s.data.History(ctx, args.Ticker, market.HistoryQuery{Period: args.Period, Interval: args.Interval})
	if errors.Is(err, app_errors.ErrNoData) || (err == nil && len(bars) == 0) {
		return fmt.Sprintf("No price data available for %s.", args.Ticker), nil
	}
	if err != nil {
		return "", err
	}

	png, err := s.renderer.Render(args.Ticker, bars)
	if errors.Is(err, app_errors.ErrNoData) {
		return fmt.Sprintf("No price data available for %s.", args.Ticker), nil
	}
	if err != nil {
		return "", err
	}
	return chart.DataURI(png), nil
}

func (s *stockTools) analyze(ctx context.Context, raw json.RawMessage) (string, error) {
	var args chartArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	symbol := strings.ToUpper(strings.TrimSpace(args.Ticker))
	period := args.Period
	if period == "" {
		period = market.DefaultPeriod
	}

	bars, err := s.data.History(ctx, args.Ticker, market.HistoryQuery{Period: period, Interval: market.DefaultInterval})
	if errors.Is(err, app_errors.ErrNoData) || (err == nil && len(bars) == 0) {
		return fmt.Sprintf("No price data available for %s.", symbol), nil
	}
	if err != nil {
		return "", err
	}

	return Analyze(symbol, period, bars), nil
}

// Analyze describes the price action in bars as a short paragraph.
func Analyze(symbol, period string, bars []market.Bar) string {
	first, last := bars[0], bars[len(bars)-1]
	high, low, sum := math.Inf(-1), math.Inf(1), 0.0
	for _, b := range bars {
		high = math.Max(high, b.Close)
		low = math.Min(low, b.Close)
		sum += b.Close
	}
	avg := sum / float64(len(bars))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s over %s: last close %s on %s.", symbol, period, FormatUSD(last.Close), last.Time.Format("2006-01-02"))
	if first.Close != 0 && len(bars) > 1 {
		change := (last.Close - first.Close) / first.Close * 100
		fmt.Fprintf(&sb, " Change %+.2f%% from %s.", change, FormatUSD(first.Close))
	}
	fmt.Fprintf(&sb, " Closing range %s to %s, average close %s.", FormatUSD(low), FormatUSD(high), FormatUSD(avg))

	if len(bars) >= movingAverage {
		maSum := 0.0
		for _, b := range bars[len(bars)-movingAverage:] {
			maSum += b.Close
		}
		ma := maSum / movingAverage
		position := "above"
		if last.Close < ma {
			position = "below"
		}
		fmt.Fprintf(&sb, " The last close is %s its %d-day moving average of %s.", position, movingAverage, FormatUSD(ma))
	}
	return sb.String()
}

// FormatUSD formats a price as $1,234.56.
func FormatUSD(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sign + "$" + sb.String() + frac
}
