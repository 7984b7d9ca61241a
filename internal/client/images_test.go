package client

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	pngURI   = "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	jpegURI  = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg!"))
)

func TestExtractImages(t *testing.T) {
	text := "Here is the chart:\n\n![AAPL](" + pngURI + ")\n\nAgain: " + pngURI + " and " + jpegURI + "."

	assert.Equal(t, []string{pngURI, jpegURI}, ExtractImages(text))
	assert.Empty(t, ExtractImages("no images, just data:text/plain;base64,aGk="))
}

func TestReplaceImages(t *testing.T) {
	text := "![AAPL](" + pngURI + ") then " + jpegURI + " then " + pngURI

	got := ReplaceImages(text, func(i int, uri string) string {
		if uri == pngURI {
			return "[png]"
		}
		return "[other]"
	})
	assert.Equal(t, "[png] then [other] then [png]", got)

	var indexes []int
	ReplaceImages(text, func(i int, _ string) string {
		indexes = append(indexes, i)
		return ""
	})
	assert.Equal(t, []int{0, 1, 0}, indexes)
}

func TestDecodeImage(t *testing.T) {
	data, mimeType, err := DecodeImage(pngURI)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, "image/png", mimeType)

	t.Run("Failure - not a data URI", func(t *testing.T) {
		_, _, err := DecodeImage("https://example.com/chart.png")
		assert.Error(t, err)
	})

	t.Run("Failure - bad payload", func(t *testing.T) {
		_, _, err := DecodeImage("data:image/png;base64,!!!")
		assert.Error(t, err)
	})
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", ImageExtension("image/png"))
	assert.Equal(t, ".jpg", ImageExtension("image/jpeg"))
	assert.Equal(t, ".svg", ImageExtension("image/svg+xml"))
}
