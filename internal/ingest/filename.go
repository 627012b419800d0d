package ingest

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	rfc5987FilenameRe = regexp.MustCompile(`(?i)filename\*=UTF-8''([^;]+)`)
	quotedFilenameRe  = regexp.MustCompile(`(?i)filename="?([^";]+)"?`)
)

// filenameFromResponse derives a stored filename from the
// Content-Disposition header, falling back to the URL basename, appending
// an extension from the content type when the name has none.
func filenameFromResponse(u *url.URL, contentDisposition, contentType string) string {
	if contentDisposition != "" {
		if m := rfc5987FilenameRe.FindStringSubmatch(contentDisposition); m != nil {
			if decoded, err := url.QueryUnescape(m[1]); err == nil {
				return decoded
			}
			return m[1]
		}
		if m := quotedFilenameRe.FindStringSubmatch(contentDisposition); m != nil {
			return m[1]
		}
	}

	name := "file"
	if u != nil && u.Path != "" {
		if last := u.Path[strings.LastIndex(u.Path, "/")+1:]; last != "" {
			name = last
		}
	}

	if !strings.Contains(strings.ToLower(name), ".") {
		switch {
		case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
			name += ".jpg"
		case strings.Contains(contentType, "png"):
			name += ".png"
		case strings.Contains(contentType, "webp"):
			name += ".webp"
		case strings.Contains(contentType, "mp4"):
			name += ".mp4"
		}
	}
	return name
}
