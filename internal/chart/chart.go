// Package chart renders price history as PNG line charts.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	app_errors "stockchat/backend/internal/errors"
	"stockchat/backend/internal/market"
)

// An 8x3 inch figure at 160 dpi.
const (
	DefaultWidth  = 1280
	DefaultHeight = 480
)

var (
	lineColor       = drawing.ColorFromHex("4af3c3")
	titleColor      = drawing.ColorFromHex("e9f0f8")
	axisColor       = drawing.ColorFromHex("97a7c3")
	backgroundColor = drawing.ColorFromHex("040a12")
	gridColor       = drawing.Color{R: 0x97, G: 0xa7, B: 0xc3, A: 51}
)

// Renderer draws close-price charts.
type Renderer struct {
	Width  int
	Height int
}

func NewRenderer() *Renderer {
	return &Renderer{Width: DefaultWidth, Height: DefaultHeight}
}

// Render returns a PNG of the close prices in bars.
func (r *Renderer) Render(ticker string, bars []market.Bar) ([]byte, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: need at least two samples to draw a chart", app_errors.ErrNoData)
	}

	xs := make([]time.Time, len(bars))
	ys := make([]float64, len(bars))
	for i, b := range bars {
		xs[i] = b.Time
		ys[i] = b.Close
	}

	graph := gochart.Chart{
		Title:      strings.ToUpper(ticker) + " close price",
		TitleStyle: gochart.Style{FontColor: titleColor, FontSize: 14},
		Width:      r.Width,
		Height:     r.Height,
		Background: gochart.Style{
			FillColor: backgroundColor,
			Padding:   gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: gochart.Style{FillColor: backgroundColor},
		XAxis: gochart.XAxis{
			Style:          gochart.Style{FontColor: axisColor, StrokeColor: axisColor},
			ValueFormatter: gochart.TimeDateValueFormatter,
		},
		YAxis: gochart.YAxis{
			Name:           "Price (USD)",
			NameStyle:      gochart.Style{FontColor: axisColor},
			Style:          gochart.Style{FontColor: axisColor, StrokeColor: axisColor},
			GridMajorStyle: gochart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    strings.ToUpper(ticker),
				XValues: xs,
				YValues: ys,
				Style:   gochart.Style{StrokeColor: lineColor, StrokeWidth: 2},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("could not render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI embeds a PNG in a data URI.
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
