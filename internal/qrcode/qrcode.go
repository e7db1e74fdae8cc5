// Package qrcode renders PNG QR codes for order tracking links and the
// shop's GCash number.
package qrcode

import (
	"errors"
	"net/url"
	"strings"

	goqr "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

var ErrEmptyContent = errors.New("qr content is empty")

// Generator encodes content into PNG images.
type Generator struct {
	Size  int
	Level goqr.RecoveryLevel
}

// New returns a Generator with medium error correction at DefaultSize.
func New() Generator {
	return Generator{Size: DefaultSize, Level: goqr.Medium}
}

// PNG encodes content as a PNG QR code.
func (g Generator) PNG(content string) ([]byte, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	size := g.Size
	if size <= 0 {
		size = DefaultSize
	}
	return goqr.Encode(content, g.Level, size)
}

// TrackingURL builds the customer tracking page link for orderNo.
func TrackingURL(baseURL, orderNo string) string {
	return strings.TrimRight(baseURL, "/") + "/track.html?order=" + url.QueryEscape(orderNo)
}
