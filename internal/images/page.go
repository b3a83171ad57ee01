// Package images fetches answer-script page images from the image source
// service and prepares them for transcription.
package images

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Page is one page image in processing order.
type Page struct {
	Number  int    // page_number reported by the image source
	Index   int    // 1-based position after ordering; used in labels
	Encoded string // base64 payload, data URL prefix removed
}

// Bytes decodes the base64 payload.
func (p Page) Bytes() ([]byte, error) {
	data := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, p.Encoded)
	return base64.StdEncoding.DecodeString(data)
}

// MediaType sniffs the image type, defaulting to image/jpeg when the bytes
// are not a recognised image.
func MediaType(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// stripDataURL removes a "data:image/...;base64," prefix.
func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:image") {
		return s
	}
	if _, rest, ok := strings.Cut(s, ","); ok {
		return rest
	}
	return s
}
