package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/fetch"
	"github.com/nemo-app/photoingest/internal/metrics"
)

// hopKind tags the outcome of one resolution step. Tagged results keep the
// walk loop flat: every step reports what it saw and the loop decides
// whether the budget allows another hop.
type hopKind int

const (
	// hopRedirect means the step produced a next URL via a 3xx Location or
	// a vendor shortcut.
	hopRedirect hopKind = iota
	// hopFollowHTML means the next URL was scraped out of an HTML page and
	// counts against the HTML-follow budget.
	hopFollowHTML
	// hopTerminal means media was stored and the walk is done.
	hopTerminal
	// hopStop means the step saw a non-media dead end.
	hopStop
)

type hopResult struct {
	kind    hopKind
	nextURL string
}

// walk drives a payload URL to stored media, one step at a time. Fresh
// per-call state lives in res; the Service itself is never mutated.
func (s *Service) walk(ctx context.Context, res *resolution) error {
	current := res.payload

	// maxRedirects bounds the number of hops, so the loop runs at most
	// maxRedirects+1 times: the initial URL plus one fetch per hop.
	for hops := 0; hops <= s.cfg.MaxRedirects; hops++ {
		norm, err := NormalizeURL(current)
		if err != nil {
			return fmt.Errorf("%w: unparsable url %q: %w", ErrInvalidPayload, current, err)
		}
		if !res.markVisited(norm) {
			return fmt.Errorf("%w: redirect loop at %s", ErrUpstream, norm)
		}

		hop, err := s.step(ctx, current, res)
		if err != nil {
			return err
		}

		switch hop.kind {
		case hopTerminal:
			metrics.ObserveHop("terminal")
			return nil
		case hopRedirect:
			metrics.ObserveHop("redirect")
			current = hop.nextURL
		case hopFollowHTML:
			res.htmlFollows++
			if res.htmlFollows > s.cfg.MaxHTMLFollows {
				return fmt.Errorf("%w: html follow budget (%d) exhausted at %s",
					ErrUpstream, s.cfg.MaxHTMLFollows, current)
			}
			metrics.ObserveHop("html")
			current = hop.nextURL
		case hopStop:
			return fmt.Errorf("%w: no media found at %s", ErrUpstream, current)
		}
	}

	return fmt.Errorf("%w: redirect budget (%d) exhausted resolving %s",
		ErrUpstream, s.cfg.MaxRedirects, res.payload)
}

// step resolves one URL: vendor shortcuts first, then a real fetch with
// content sniffing.
func (s *Service) step(ctx context.Context, rawURL string, res *resolution) (hopResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return hopResult{}, fmt.Errorf("%w: unparsable url %q: %w", ErrInvalidPayload, rawURL, err)
	}

	for _, v := range s.vendors {
		out := v.resolve(ctx, u)
		if out == nil {
			continue
		}
		metrics.ObserveHop("vendor")
		if out.media != nil {
			res.adopt(*out.media)
			return hopResult{kind: hopTerminal}, nil
		}
		s.logger.Debug("vendor rewrote url",
			zap.String("resolver", v.name()), zap.String("next", out.nextURL))
		return hopResult{kind: hopRedirect, nextURL: out.nextURL}, nil
	}

	start := time.Now()
	resp, err := s.fetcher.Get(ctx, rawURL, res.payload)
	if err != nil {
		if errors.Is(err, fetch.ErrTooLarge) {
			return hopResult{}, fmt.Errorf("%w: %s: %w", ErrLimitExceeded, rawURL, err)
		}
		return hopResult{}, fmt.Errorf("%w: fetch %s: %w", ErrUpstream, rawURL, err)
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		_ = resp.Close()
		loc := resp.Header.Get("Location")
		if loc == "" {
			return hopResult{}, fmt.Errorf("%w: %s returned %d without Location",
				ErrUpstream, rawURL, resp.StatusCode)
		}
		next, err := resolveRef(u, loc)
		if err != nil {
			return hopResult{}, fmt.Errorf("%w: bad Location %q from %s: %w",
				ErrUpstream, loc, rawURL, err)
		}
		return hopResult{kind: hopRedirect, nextURL: next}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Close()
		return hopResult{}, fmt.Errorf("%w: %s returned status %d", ErrUpstream, rawURL, resp.StatusCode)
	}

	data, err := resp.ReadAll()
	if err != nil {
		if errors.Is(err, fetch.ErrTooLarge) {
			return hopResult{}, fmt.Errorf("%w: %s: %w", ErrLimitExceeded, rawURL, err)
		}
		return hopResult{}, fmt.Errorf("%w: read %s: %w", ErrUpstream, rawURL, err)
	}
	metrics.ObserveFetch(time.Since(start), len(data))

	return s.classify(ctx, u, resp, data, res)
}

// classify decides what the fetched body is and either stores it or hands
// back the next hop.
func (s *Service) classify(ctx context.Context, u *url.URL, resp *fetch.Response, data []byte, res *resolution) (hopResult, error) {
	ct := resp.ContentType()
	detected := fetch.DetectMIME(data)

	switch {
	case fetch.LooksLikeImage(data):
		if len(data) < s.cfg.MinImageBytes {
			return hopResult{}, fmt.Errorf("%w: image at %s is %d bytes, below minimum %d",
				ErrUpstream, u, len(data), s.cfg.MinImageBytes)
		}
		key, err := s.storeBytes(ctx, u, resp, data, detected)
		if err != nil {
			return hopResult{}, err
		}
		res.adopt(storedMedia{imageKey: key, thumbKey: key})
		return hopResult{kind: hopTerminal}, nil

	case isVideo(ct, detected):
		key, err := s.storeBytes(ctx, u, resp, data, detected)
		if err != nil {
			return hopResult{}, err
		}
		res.adopt(storedMedia{videoKey: key})
		// Booths that publish only a video usually keep a still image next
		// to it. Best effort; the video alone is kept either way.
		s.trySiblingImage(ctx, u, res)
		return hopResult{kind: hopTerminal}, nil

	case resp.IsAttachment() && !fetch.LooksLikeHTMLOrJSON(data):
		// Vendor download endpoints mark media as attachments, sometimes
		// without a sniffable signature (HEIC).
		if len(data) < s.cfg.MinImageBytes {
			return hopResult{}, fmt.Errorf("%w: attachment at %s is %d bytes, below minimum %d",
				ErrUpstream, u, len(data), s.cfg.MinImageBytes)
		}
		key, err := s.storeBytes(ctx, u, resp, data, detected)
		if err != nil {
			return hopResult{}, err
		}
		res.adopt(storedMedia{imageKey: key, thumbKey: key})
		return hopResult{kind: hopTerminal}, nil

	case strings.HasPrefix(ct, "text/html") || detected == "text/html" || fetch.LooksLikeHTMLOrJSON(data):
		next, ok := extractMediaURL(data, u)
		if !ok {
			return hopResult{kind: hopStop}, nil
		}
		return hopResult{kind: hopFollowHTML, nextURL: next}, nil
	}

	return hopResult{kind: hopStop}, nil
}

// storeBytes persists one fetched body under a filename derived from the
// response.
func (s *Service) storeBytes(ctx context.Context, u *url.URL, resp *fetch.Response, data []byte, detected string) (string, error) {
	mime := detected
	if mime == "" {
		mime = resp.ContentType()
	}
	name := filenameFromResponse(u, resp.Header.Get("Content-Disposition"), mime)

	key, err := s.store.Store(ctx, data, name, mime)
	if err != nil {
		return "", fmt.Errorf("%w: store %s: %w", ErrStorage, u, err)
	}
	return key, nil
}

// trySiblingImage replaces the last path segment of a video URL with
// image.jpg and stores the result when it really is an image. Only the
// booth resource host lays its files out that way, so anything else is
// left alone. Failures are logged and swallowed.
func (s *Service) trySiblingImage(ctx context.Context, videoURL *url.URL, res *resolution) {
	if res.imageKey != "" {
		return
	}
	if !strings.HasSuffix(videoURL.Path, "/video.mp4") ||
		!strings.Contains(strings.ToLower(videoURL.Hostname()), s.siblingHost) {
		return
	}
	idx := strings.LastIndex(videoURL.Path, "/")
	if idx < 0 {
		return
	}

	sibling := *videoURL
	sibling.Path = videoURL.Path[:idx+1] + "image.jpg"
	sibling.RawQuery = ""

	resp, err := s.fetcher.Get(ctx, sibling.String(), videoURL.String())
	if err != nil {
		s.logger.Debug("sibling image fetch failed", zap.String("url", sibling.String()), zap.Error(err))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Close()
		return
	}
	data, err := resp.ReadAll()
	if err != nil {
		s.logger.Debug("sibling image read failed", zap.String("url", sibling.String()), zap.Error(err))
		return
	}
	if err := fetch.ValidateImage(data, s.cfg.MinImageBytes); err != nil {
		return
	}

	key, err := s.storeBytes(ctx, &sibling, resp, data, fetch.DetectMIME(data))
	if err != nil {
		s.logger.Warn("sibling image store failed", zap.String("url", sibling.String()), zap.Error(err))
		return
	}
	res.adopt(storedMedia{imageKey: key, thumbKey: key})
	s.logger.Info("sibling still image stored", zap.String("key", key))
}

func isVideo(ct, detected string) bool {
	return strings.HasPrefix(ct, "video/") || strings.HasPrefix(detected, "video/")
}
