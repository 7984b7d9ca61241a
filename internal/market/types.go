package market

import "time"

const (
	DefaultPeriod   = "6mo"
	DefaultInterval = "1d"
)

// Quote is the latest known price of a security.
type Quote struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
}

// Bar is one OHLCV sample.
type Bar struct {
	Time   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HistoryQuery selects either an explicit date range (Start/End as
// YYYY-MM-DD) or a relative Period such as "6mo".
type HistoryQuery struct {
	Start    string
	End      string
	Period   string
	Interval string
}

// NewsItem is a single headline.
type NewsItem struct {
	Title       string    `json:"title"`
	Publisher   string    `json:"publisher"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// BalanceSheet holds annual balance sheet items, most recent period first.
type BalanceSheet struct {
	Symbol  string               `json:"symbol"`
	Periods []BalanceSheetPeriod `json:"periods"`
}

type BalanceSheetPeriod struct {
	AsOfDate string             `json:"as_of_date"`
	Items    map[string]float64 `json:"items"`
}
