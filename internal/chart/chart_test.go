package chart

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "stockchat/backend/internal/errors"
	"stockchat/backend/internal/market"
)

func sampleBars(n int) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{Time: start.AddDate(0, 0, i), Close: 100 + float64(i%7)}
	}
	return bars
}

func TestRenderer_Render(t *testing.T) {
	data, err := NewRenderer().Render("aapl", sampleBars(30))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())
}

func TestRenderer_Render_NotEnoughData(t *testing.T) {
	_, err := NewRenderer().Render("AAPL", sampleBars(1))
	assert.ErrorIs(t, err, app_errors.ErrNoData)
}

func TestDataURI(t *testing.T) {
	uri := DataURI([]byte{0x89, 'P', 'N', 'G'})
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, decoded)
}
