// Package qr renders student identity tokens as QR images and decodes
// uploaded camera frames back into tokens.
package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyToken is returned when asked to encode a blank token.
var ErrEmptyToken = errors.New("token is empty")

// DefaultSize is the rendered image edge in pixels.
const DefaultSize = 256

// Encode renders a token as a PNG QR image. Deterministic: the same token
// always yields an image decoding to exactly that token.
func Encode(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}
