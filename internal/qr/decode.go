package qr

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode is returned when a frame contains no readable QR code. This is the
// normal case for most camera frames and is not a session-level failure.
var ErrNoCode = errors.New("no QR code in frame")

// Decode extracts the token encoded in an image.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		if _, ok := err.(gozxing.NotFoundException); ok {
			return "", ErrNoCode
		}
		return "", err
	}
	return result.GetText(), nil
}

// DecodeBytes decodes a PNG or JPEG frame payload.
func DecodeBytes(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return Decode(img)
}
