package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "stockchat/backend/internal/errors"
)

const chartFixture = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"AAPL","shortName":"Apple Inc.","regularMarketPrice":190.5},
"timestamp":[1704153600,1704240000,1704326400],
"indicators":{"quote":[{"open":[185.0,184.0,null],"high":[188.0,186.0,null],"low":[183.0,182.5,null],
"close":[187.15,185.64,null],"volume":[1000,2000,null]}]}}],"error":null}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client())
}

func TestClient_Quote(t *testing.T) {
	var capturedPath, capturedRange, capturedUA string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedRange = r.URL.Query().Get("range")
		capturedUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(chartFixture))
	})

	q, err := client.Quote(context.Background(), " aapl ")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", capturedPath)
	assert.Equal(t, "5d", capturedRange)
	assert.NotEmpty(t, capturedUA)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "Apple Inc.", q.Name)
	// The trailing null close is skipped.
	assert.InDelta(t, 185.64, q.Price, 0.001)
}

func TestClient_Quote_FallsBackToMarketPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"XYZ","longName":"XYZ Corp","regularMarketPrice":12.5},
			"timestamp":[],"indicators":{"quote":[{"close":[]}]}}]}}`))
	})

	q, err := client.Quote(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Equal(t, "XYZ Corp", q.Name)
	assert.InDelta(t, 12.5, q.Price, 0.001)
}

func TestClient_Quote_UnknownSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	_, err := client.Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, app_errors.ErrNoData)
}

func TestClient_Quote_EmptyTicker(t *testing.T) {
	client := NewClient("http://unused.invalid", nil)
	_, err := client.Quote(context.Background(), "   ")
	assert.ErrorIs(t, err, app_errors.ErrValidation)
}

func TestClient_Quote_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("Too Many Requests"))
	})

	_, err := client.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, app_errors.ErrUpstream)
	assert.ErrorContains(t, err, "429")
}

func TestClient_History(t *testing.T) {
	t.Run("DateRange", func(t *testing.T) {
		var query map[string]string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			query = map[string]string{
				"period1":  r.URL.Query().Get("period1"),
				"period2":  r.URL.Query().Get("period2"),
				"interval": r.URL.Query().Get("interval"),
				"range":    r.URL.Query().Get("range"),
			}
			_, _ = w.Write([]byte(chartFixture))
		})

		bars, err := client.History(context.Background(), "AAPL", HistoryQuery{Start: "2024-01-01", End: "2024-01-05"})
		require.NoError(t, err)

		assert.Equal(t, "1704067200", query["period1"])
		assert.Equal(t, "1704412800", query["period2"])
		assert.Equal(t, "1d", query["interval"])
		assert.Empty(t, query["range"])

		require.Len(t, bars, 2)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
		assert.InDelta(t, 187.15, bars[0].Close, 0.001)
		assert.Equal(t, int64(2000), bars[1].Volume)
	})

	t.Run("PeriodDefaults", func(t *testing.T) {
		var rangeParam, interval string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			rangeParam = r.URL.Query().Get("range")
			interval = r.URL.Query().Get("interval")
			_, _ = w.Write([]byte(chartFixture))
		})

		_, err := client.History(context.Background(), "AAPL", HistoryQuery{})
		require.NoError(t, err)
		assert.Equal(t, DefaultPeriod, rangeParam)
		assert.Equal(t, DefaultInterval, interval)
	})

	t.Run("InvalidDates", func(t *testing.T) {
		client := NewClient("http://unused.invalid", nil)
		_, err := client.History(context.Background(), "AAPL", HistoryQuery{Start: "yesterday", End: "2024-01-05"})
		assert.ErrorIs(t, err, app_errors.ErrValidation)

		_, err = client.History(context.Background(), "AAPL", HistoryQuery{Start: "2024-01-05", End: "2024-01-01"})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})
}

func TestClient_News(t *testing.T) {
	var capturedQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/finance/search", r.URL.Path)
		capturedQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"news":[
			{"title":"Apple ships","publisher":"Reuters","link":"https://example.com/a","providerPublishTime":1704153600},
			{"title":"Apple slips","publisher":"Bloomberg"}]}`))
	})

	items, err := client.News(context.Background(), "aapl", 1)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", capturedQuery)
	require.Len(t, items, 1)
	assert.Equal(t, "Apple ships", items[0].Title)
	assert.Equal(t, "Reuters", items[0].Publisher)
	assert.Equal(t, time.Unix(1704153600, 0).UTC(), items[0].PublishedAt)
}

func TestClient_BalanceSheet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/fundamentals-timeseries/v1/finance/timeseries/AAPL", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("type"), "annualTotalAssets")
		_, _ = w.Write([]byte(`{"timeseries":{"result":[
			{"meta":{"symbol":["AAPL"],"type":["annualTotalAssets"]},"timestamp":[1],
			 "annualTotalAssets":[{"asOfDate":"2022-09-30","reportedValue":{"raw":352755000000}},
			                      {"asOfDate":"2023-09-30","reportedValue":{"raw":352583000000}}]},
			{"meta":{"symbol":["AAPL"],"type":["annualTotalDebt"]},"timestamp":[1],
			 "annualTotalDebt":[null,{"asOfDate":"2023-09-30","reportedValue":{"raw":111088000000}}]},
			{"meta":{"symbol":["AAPL"],"type":["annualRetainedEarnings"]}}
		],"error":null}}`))
	})

	sheet, err := client.BalanceSheet(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, sheet.Periods, 2)
	assert.Equal(t, "2023-09-30", sheet.Periods[0].AsOfDate)
	assert.InDelta(t, 352583000000, sheet.Periods[0].Items["TotalAssets"], 1)
	assert.InDelta(t, 111088000000, sheet.Periods[0].Items["TotalDebt"], 1)
	assert.NotContains(t, sheet.Periods[1].Items, "TotalDebt")
}

func TestClient_BalanceSheet_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timeseries":{"result":[],"error":null}}`))
	})

	_, err := client.BalanceSheet(context.Background(), "AAPL")
	assert.ErrorIs(t, err, app_errors.ErrNoData)
}
