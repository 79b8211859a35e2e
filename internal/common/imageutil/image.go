// Package imageutil decodes the images carried in job variables.
package imageutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxImageBytes bounds a decoded image.
const MaxImageBytes = 10 << 20

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrInvalidEncoding  = errors.New("image is not valid base64")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Decode accepts raw base64 (standard or URL alphabet, padded or not) or a
// data URL and returns the image bytes.
func Decode(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.Contains(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidEncoding)
		}
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, ErrEmptyImage
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxImageBytes+3 {
		return nil, ErrImageTooLarge
	}

	data, err := decodeAny(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	if _, err := DetectMIME(data); err != nil {
		return nil, err
	}
	return data, nil
}

func decodeAny(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// DetectMIME sniffs the image format.
func DetectMIME(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !supportedTypes[mime] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}
	return mime, nil
}

// Encode returns the standard base64 form used in provider payloads.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURL returns data as a base64 data URL with its sniffed MIME type.
func DataURL(data []byte) string {
	mime, err := DetectMIME(data)
	if err != nil {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + Encode(data)
}
