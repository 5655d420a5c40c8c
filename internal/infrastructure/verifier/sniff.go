package verifier

import (
	"bytes"
	"strings"
)

const (
	TypePDF  = "application/pdf"
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeTIFF = "image/tiff"
	TypeWEBP = "image/webp"

	typeUnknown = "application/octet-stream"
)

var aliases = map[string]string{
	"pdf":  TypePDF,
	"jpg":  TypeJPEG,
	"jpeg": TypeJPEG,
	"png":  TypePNG,
	"tif":  TypeTIFF,
	"tiff": TypeTIFF,
	"webp": TypeWEBP,

	TypePDF:     TypePDF,
	TypeJPEG:    TypeJPEG,
	"image/jpg": TypeJPEG,
	TypePNG:     TypePNG,
	TypeTIFF:    TypeTIFF,
	TypeWEBP:    TypeWEBP,
}

func normalizeType(declared string) (string, bool) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(declared))]

	return t, ok
}

// Sniff detects the content type from magic bytes.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return TypePDF
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return TypeJPEG
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return TypePNG
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return TypeTIFF
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return TypeWEBP
	default:
		return typeUnknown
	}
}
