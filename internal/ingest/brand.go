package ingest

import "strings"

// inferBrand guesses the photobooth brand from a payload URL. Unrecognized
// hosts yield an empty brand; the caller decides the fallback.
func inferBrand(payload string) string {
	s := strings.ToLower(payload)
	switch {
	case strings.Contains(s, "life4cut"):
		return "life4cut"
	case strings.Contains(s, "harufilm"):
		return "harufilm"
	case strings.Contains(s, "photoism"):
		return "photoism"
	case strings.Contains(s, "signature"):
		return "photosignature"
	case strings.Contains(s, "twin"):
		return "twinphoto"
	case strings.Contains(s, "photogray"), strings.Contains(s, "pgshort"), strings.Contains(s, "pg-qr-resource"):
		return "photogray"
	}
	return ""
}
