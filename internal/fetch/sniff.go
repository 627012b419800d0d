package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotImage signals bytes that failed image validation.
var ErrNotImage = errors.New("not image content")

// DetectMIME determines a MIME type from leading bytes, independent of any
// declared header. It returns "" when the signature is unknown.
func DetectMIME(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	if b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF {
		return "image/jpeg"
	}
	if len(b) >= 8 && b[0] == 0x89 && b[1] == 'P' && b[2] == 'N' && b[3] == 'G' &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if b[0] == 'G' && b[1] == 'I' && b[2] == 'F' {
		return "image/gif"
	}
	if len(b) >= 12 && b[0] == 'R' && b[1] == 'I' && b[2] == 'F' && b[3] == 'F' &&
		b[8] == 'W' && b[9] == 'E' && b[10] == 'B' && b[11] == 'P' {
		return "image/webp"
	}
	// ISO-BMFF (ftyp) covers both HEIC stills and MP4 video.
	if len(b) >= 12 && b[4] == 'f' && b[5] == 't' && b[6] == 'y' && b[7] == 'p' {
		brand := string(b[8:12])
		if strings.HasPrefix(brand, "he") || brand == "mif1" || brand == "msf1" {
			return "image/heic"
		}
		return "video/mp4"
	}
	head := headString(b, 32)
	if strings.HasPrefix(head, "<!doc") || strings.HasPrefix(head, "<html") || strings.HasPrefix(head, `{"`) {
		return "text/html"
	}
	return ""
}

// LooksLikeImage reports whether the bytes start with a known still-image
// magic number (JPEG, PNG, GIF, WEBP).
func LooksLikeImage(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	switch DetectMIME(b) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// LooksLikeHTMLOrJSON reports whether the bytes carry an HTML or JSON
// document signature. Vendor error pages regularly arrive with image
// content types, so this check runs on raw bytes before any store.
func LooksLikeHTMLOrJSON(b []byte) bool {
	if len(b) < 5 {
		return false
	}
	head := headString(b, 48)
	return strings.HasPrefix(head, "<!doc") || strings.HasPrefix(head, "<html") ||
		strings.HasPrefix(head, `{"`) || strings.Contains(head, "<body")
}

// ValidateImage checks that data is a plausibly real image: at least
// minBytes long and carrying a known magic number.
func ValidateImage(data []byte, minBytes int) error {
	if len(data) < minBytes {
		return fmt.Errorf("image too small (%d bytes): %w", len(data), ErrNotImage)
	}
	if !LooksLikeImage(data) {
		return fmt.Errorf("unknown image signature: %w", ErrNotImage)
	}
	return nil
}

func headString(b []byte, n int) string {
	if len(b) < n {
		n = len(b)
	}
	return strings.ToLower(strings.TrimSpace(string(b[:n])))
}
