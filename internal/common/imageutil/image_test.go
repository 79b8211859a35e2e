package imageutil

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestDecode(t *testing.T) {
	std := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr error
	}{
		{name: "standard base64", input: std, want: pngHeader},
		{name: "raw base64", input: base64.RawStdEncoding.EncodeToString(jpegHeader), want: jpegHeader},
		{name: "url base64", input: base64.URLEncoding.EncodeToString(pngHeader), want: pngHeader},
		{name: "data URL", input: "data:image/png;base64," + std, want: pngHeader},
		{name: "wrapped lines", input: std[:10] + "\n" + std[10:], want: pngHeader},
		{name: "empty", input: "  ", wantErr: ErrEmptyImage},
		{name: "empty data URL", input: "data:image/png;base64,", wantErr: ErrEmptyImage},
		{name: "data URL without base64", input: "data:image/png,abc", wantErr: ErrInvalidEncoding},
		{name: "not base64", input: "!!not-base64!!", wantErr: ErrInvalidEncoding},
		{name: "not an image", input: base64.StdEncoding.EncodeToString([]byte("hello world")), wantErr: ErrUnsupportedImage},
		{name: "too large", input: strings.Repeat("A", (MaxImageBytes/3+10)*4), wantErr: ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectMIME(t *testing.T) {
	mime, err := DetectMIME(jpegHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	mime, err = DetectMIME(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = DetectMIME([]byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestDataURL(t *testing.T) {
	url := DataURL(pngHeader)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	decoded, err := Decode(url)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, decoded)
}
