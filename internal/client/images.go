package client

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

const dataURI = `data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/]+={0,2}`

// imagePattern matches a data URI, optionally wrapped in markdown image syntax.
var imagePattern = regexp.MustCompile(`!\[([^\]\n]*)\]\((` + dataURI + `)\)|(` + dataURI + `)`)

func matchURI(sub []string) string {
	if sub[2] != "" {
		return sub[2]
	}
	return sub[3]
}

// ExtractImages returns the distinct image data URIs in text, in the order
// they first appear.
func ExtractImages(text string) []string {
	var uris []string
	seen := make(map[string]bool)
	for _, sub := range imagePattern.FindAllStringSubmatch(text, -1) {
		uri := matchURI(sub)
		if seen[uri] {
			continue
		}
		seen[uri] = true
		uris = append(uris, uri)
	}
	return uris
}

// ReplaceImages rewrites every image in text, markdown wrapper included, with
// the output of fn. index is the position of the URI in ExtractImages(text).
func ReplaceImages(text string, fn func(index int, uri string) string) string {
	order := make(map[string]int)
	return imagePattern.ReplaceAllStringFunc(text, func(match string) string {
		uri := matchURI(imagePattern.FindStringSubmatch(match))
		i, ok := order[uri]
		if !ok {
			i = len(order)
			order[uri] = i
		}
		return fn(i, uri)
	})
}

// DecodeImage returns the payload and the MIME type of a data URI.
func DecodeImage(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("not a base64 data URI")
	}
	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image payload: %w", err)
	}
	return data, mimeType, nil
}

// ImageExtension maps an image MIME type to a file extension.
func ImageExtension(mimeType string) string {
	switch sub := strings.TrimPrefix(mimeType, "image/"); sub {
	case "jpeg":
		return ".jpg"
	case "svg+xml":
		return ".svg"
	default:
		return "." + sub
	}
}
