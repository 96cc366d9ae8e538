// Package encoding normalizes uploaded export payloads to UTF-8 before JSON
// decoding. Exports written by browsers and Windows tools regularly arrive as
// UTF-16, with or without a BOM, or in a legacy single-byte charset.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewUTF8Reader wraps r so its content reads as UTF-8. A UTF-8 BOM is
// stripped, UTF-16 is decoded whether or not it carries a BOM, already-valid
// UTF-8 passes through, and anything else goes through chardet with a
// Windows-1252 fallback.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	buf, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek: %w", err)
	}

	if bytes.HasPrefix(buf, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	}

	if bytes.HasPrefix(buf, bomUTF16LE) {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	}

	if bytes.HasPrefix(buf, bomUTF16BE) {
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), nil
	}

	// A JSON document opens with an ASCII byte, so BOM-less UTF-16 shows up
	// as that byte paired with a null: "{" as 7B 00 (LE) or 00 7B (BE).
	if len(buf) >= 2 && buf[0] != 0x00 && buf[1] == 0x00 {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()), nil
	}

	if len(buf) >= 2 && buf[0] == 0x00 && buf[1] != 0x00 {
		return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()), nil
	}

	if utf8.Valid(buf) {
		return br, nil
	}

	// The peek window can split a multi-byte rune; chardet sees past that.
	if result, detectErr := chardet.NewTextDetector().DetectBest(buf); detectErr == nil && result.Charset == "UTF-8" {
		return br, nil
	}

	// Anything left is a single-byte legacy charset. Windows-1252 covers the
	// exports seen in practice and decoding it never fails.
	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
}
