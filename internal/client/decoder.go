package client

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a byte stream into text chunk by chunk. A multi-byte rune
// split across two reads is held back until the rest of it arrives. Invalid
// sequences decode to U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text of p that forms complete runes.
func (d *Decoder) Decode(p []byte) string {
	return d.run(p, false)
}

// Flush returns whatever is still buffered, once the stream has ended.
func (d *Decoder) Flush() string {
	s := d.run(nil, true)
	d.t.Reset()
	return s
}

func (d *Decoder) run(p []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(append(src, d.pending...), p...)
	// Every invalid byte can grow into a three byte replacement rune.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && nSrc > 0 {
			continue
		}
		break
	}
	d.pending = append(d.pending[:0], src...)
	return out.String()
}
