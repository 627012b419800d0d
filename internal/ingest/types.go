// Package ingest resolves QR payloads and uploads to stored image assets.
package ingest

import (
	"strings"
	"time"
)

// IngestRequest carries either a binary upload or a QR payload string.
// Exactly one of Binary and Payload must be present.
type IngestRequest struct {
	// Payload is the opaque string from a photobooth QR code, expected to
	// be an absolute http(s) URL.
	Payload string

	// Binary is a directly uploaded image, with its declared content type
	// and original filename.
	Binary      []byte
	ContentType string
	Filename    string
}

// ResolvedAsset is the domain-facing result of one ingest call.
type ResolvedAsset struct {
	ImageKey     string
	ThumbnailKey string

	// TakenAt and Brand are inferred from the payload when recognizable.
	TakenAt *time.Time
	Brand   string

	// videoKey is persisted alongside but never surfaced to the domain
	// layer.
	videoKey string
}

// HasImage reports whether the walk produced a still image.
func (a ResolvedAsset) HasImage() bool {
	return a.ImageKey != ""
}

// resolution is the per-call mutable walk state. It is created fresh for
// every ingest call and never shared, which keeps the pipeline reentrant
// under concurrent load.
type resolution struct {
	payload     string
	visited     map[string]struct{}
	htmlFollows int

	imageKey string
	thumbKey string
	videoKey string
}

func newResolution(payload string) *resolution {
	return &resolution{
		payload: payload,
		visited: make(map[string]struct{}),
	}
}

// markVisited records a normalized URL, reporting false on a repeat visit.
func (r *resolution) markVisited(norm string) bool {
	if _, seen := r.visited[norm]; seen {
		return false
	}
	r.visited[norm] = struct{}{}
	return true
}

// adopt merges stored media keys from a vendor resolver or terminal hop.
func (r *resolution) adopt(m storedMedia) {
	if r.imageKey == "" {
		r.imageKey = m.imageKey
	}
	if r.thumbKey == "" {
		r.thumbKey = m.thumbKey
	}
	if r.videoKey == "" {
		r.videoKey = m.videoKey
	}
}

// storedMedia accumulates keys produced while walking one payload.
type storedMedia struct {
	imageKey string
	thumbKey string
	videoKey string
}

func looksLikeURL(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}
