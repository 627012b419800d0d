package assetstore

import (
	"regexp"
	"strings"
)

// ResolveMIME picks the final MIME type: server-declared first, then
// magic-number detection, then a filename-extension guess, then
// octet-stream.
func ResolveMIME(reported, detected, filename string) string {
	if usable(reported) {
		return strings.ToLower(reported)
	}
	if usable(detected) {
		return detected
	}
	if guessed := guessFromName(filename); usable(guessed) {
		return guessed
	}
	return "application/octet-stream"
}

func usable(mime string) bool {
	mime = strings.TrimSpace(mime)
	return mime != "" && !strings.EqualFold(mime, "application/octet-stream")
}

func guessFromName(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".jpg"), strings.HasSuffix(n, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(n, ".png"):
		return "image/png"
	case strings.HasSuffix(n, ".gif"):
		return "image/gif"
	case strings.HasSuffix(n, ".webp"):
		return "image/webp"
	case strings.HasSuffix(n, ".heic"), strings.HasSuffix(n, ".heif"):
		return "image/heic"
	case strings.HasSuffix(n, ".mp4"):
		return "video/mp4"
	}
	return ""
}

// ExtensionForMIME maps a MIME type to a key extension, falling back to the
// original filename's extension, then "bin".
func ExtensionForMIME(mime, filename string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	case "video/mp4":
		return "mp4"
	case "text/html":
		return "html"
	}
	if guessed := guessFromName(filename); guessed != "" {
		return ExtensionForMIME(guessed, "")
	}
	return "bin"
}

// IsImageMIME reports whether mime is any image type.
func IsImageMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}

var unsafeFilenameChars = regexp.MustCompile(`[\r\n\\/"<>:*?|]`)

// SafeFilename strips characters that would break a Content-Disposition
// header or a filesystem path.
func SafeFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return "file"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
