package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/assetstore"
	"github.com/nemo-app/photoingest/internal/fetch"
)

// errVendorImageInvalid marks a session image that fetched fine but does
// not hold usable image bytes (expired links serve HTML error pages). The
// resolver abandons entirely on it so the generic walk gets its turn.
var errVendorImageInvalid = errors.New("vendor image invalid")

// vendorOutcome is a successful vendor match: either the next URL to fetch
// (shortcutting fragile intermediate pages) or already-stored terminal
// media.
type vendorOutcome struct {
	nextURL string
	media   *storedMedia
}

// vendorResolver special-cases a known vendor URL shape. A nil outcome is
// a normal, silent "no match" and never an error: the walker falls through
// to generic resolution.
type vendorResolver interface {
	name() string
	resolve(ctx context.Context, u *url.URL) *vendorOutcome
}

// webQRResolver handles the life4cut "web QR" page shape. The page's query
// string already names the bucket and folder of the final asset, so the
// canonical object-storage URL can be built without scraping the page.
type webQRResolver struct {
	hostSubstring string
	pathSubstring string
	objectURL     func(bucket, folderPath string) string
	logger        *zap.Logger
}

func newWebQRResolver(logger *zap.Logger) *webQRResolver {
	return &webQRResolver{
		hostSubstring: "life4cut",
		pathSubstring: "webQr",
		objectURL: func(bucket, folderPath string) string {
			return fmt.Sprintf("https://%s.s3.ap-northeast-2.amazonaws.com%s/image.jpg", bucket, folderPath)
		},
		logger: logger,
	}
}

func (r *webQRResolver) name() string { return "webqr" }

func (r *webQRResolver) resolve(_ context.Context, u *url.URL) *vendorOutcome {
	if u == nil || u.Host == "" {
		return nil
	}
	if !strings.Contains(strings.ToLower(u.Host), strings.ToLower(r.hostSubstring)) {
		return nil
	}
	if !strings.Contains(u.Path, r.pathSubstring) {
		return nil
	}

	q := u.Query()
	bucket := q.Get("bucket")
	folderPath := q.Get("folderPath")
	if bucket == "" || folderPath == "" {
		r.logger.Debug("webqr query missing bucket/folderPath", zap.String("query", u.RawQuery))
		return nil
	}
	if !strings.HasPrefix(folderPath, "/") {
		folderPath = "/" + folderPath
	}

	next := r.objectURL(bucket, folderPath)
	r.logger.Info("webqr shortcut", zap.String("from", u.String()), zap.String("to", next))
	return &vendorOutcome{nextURL: next}
}

// sessionResolver handles the photogray "download" shape: the id query
// parameter base64-decodes to a session id that addresses the image and
// video objects directly.
type sessionResolver struct {
	hostSubstring string
	resourceBase  string
	fetcher       *fetch.Client
	store         *assetstore.Store
	minImageBytes int
	logger        *zap.Logger
}

func newSessionResolver(fetcher *fetch.Client, store *assetstore.Store, minImageBytes int, logger *zap.Logger) *sessionResolver {
	return &sessionResolver{
		hostSubstring: "photogray-download",
		resourceBase:  "https://pg-qr-resource.aprd.io",
		fetcher:       fetcher,
		store:         store,
		minImageBytes: minImageBytes,
		logger:        logger,
	}
}

func (r *sessionResolver) name() string { return "session" }

func (r *sessionResolver) resolve(ctx context.Context, u *url.URL) *vendorOutcome {
	if u == nil || u.Host == "" {
		return nil
	}
	if !strings.Contains(strings.ToLower(u.Host), strings.ToLower(r.hostSubstring)) {
		return nil
	}

	encodedID := u.Query().Get("id")
	if encodedID == "" {
		return nil
	}

	sessionID, ok := r.decodeSessionID(encodedID)
	if !ok {
		return nil
	}

	imageURL := fmt.Sprintf("%s/%s/image.jpg", r.resourceBase, sessionID)
	videoURL := fmt.Sprintf("%s/%s/video.mp4", r.resourceBase, sessionID)

	media := storedMedia{}

	imageKey, err := r.fetchAndStoreImage(ctx, imageURL, u.String())
	switch {
	case err == nil:
		media.imageKey = imageKey
		media.thumbKey = imageKey
	case errors.Is(err, errVendorImageInvalid):
		// The resource exists but is not an image; the whole session layout
		// is suspect, so step aside before touching the video.
		r.logger.Warn("session image invalid, abandoning resolver",
			zap.String("url", imageURL), zap.Error(err))
		return nil
	default:
		r.logger.Warn("session image fetch failed", zap.String("url", imageURL), zap.Error(err))
	}

	if videoKey, ok := r.fetchAndStoreVideo(ctx, videoURL, u.String()); ok {
		media.videoKey = videoKey
	}

	if media.imageKey == "" && media.videoKey == "" {
		// Neither resource worked; hand the URL back to the generic walk.
		return nil
	}
	return &vendorOutcome{media: &media}
}

// decodeSessionID recovers sessionId from the base64 id parameter, whose
// plaintext is itself a query string (sessionId=...&mode=...).
func (r *sessionResolver) decodeSessionID(encodedID string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(encodedID)
	if err != nil {
		r.logger.Debug("session id base64 decode failed", zap.String("id", encodedID))
		return "", false
	}
	values, err := url.ParseQuery(string(decoded))
	if err != nil {
		r.logger.Debug("session id payload unparsable", zap.String("decoded", string(decoded)))
		return "", false
	}
	sessionID := values.Get("sessionId")
	if sessionID == "" {
		r.logger.Debug("sessionId missing in decoded payload", zap.String("decoded", string(decoded)))
		return "", false
	}
	return sessionID, true
}

// fetchAndStoreImage downloads the canonical image resource and stores it
// after sniffing real image bytes; the vendor declares octet-stream. Bytes
// that fetch cleanly but fail validation come back as
// errVendorImageInvalid; anything else is an HTTP-level failure.
func (r *sessionResolver) fetchAndStoreImage(ctx context.Context, imageURL, referer string) (string, error) {
	resp, err := r.fetcher.Get(ctx, imageURL, referer)
	if err != nil {
		return "", fmt.Errorf("fetch session image: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Close()
		return "", fmt.Errorf("session image status %d", resp.StatusCode)
	}

	data, err := resp.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read session image: %w", err)
	}

	if err := fetch.ValidateImage(data, r.minImageBytes); err != nil {
		return "", fmt.Errorf("%w: %w", errVendorImageInvalid, err)
	}

	realCT := fetch.DetectMIME(data)
	if realCT == "" {
		realCT = resp.ContentType()
	}
	parsed, _ := url.Parse(imageURL)
	name := filenameFromResponse(parsed, resp.Header.Get("Content-Disposition"), realCT)

	key, err := r.store.Store(ctx, data, name, realCT)
	if err != nil {
		return "", fmt.Errorf("store session image: %w", err)
	}
	r.logger.Info("session image stored", zap.String("key", key), zap.String("mime", realCT))
	return key, nil
}

// fetchAndStoreVideo grabs the sibling video best-effort; failures are
// logged and ignored.
func (r *sessionResolver) fetchAndStoreVideo(ctx context.Context, videoURL, referer string) (string, bool) {
	resp, err := r.fetcher.Get(ctx, videoURL, referer)
	if err != nil {
		r.logger.Debug("session video fetch failed", zap.String("url", videoURL), zap.Error(err))
		return "", false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Close()
		return "", false
	}
	ct := resp.ContentType()
	if !strings.HasPrefix(ct, "video/") {
		_ = resp.Close()
		return "", false
	}

	data, err := resp.ReadAll()
	if err != nil {
		r.logger.Debug("session video read failed", zap.String("url", videoURL), zap.Error(err))
		return "", false
	}

	parsed, _ := url.Parse(videoURL)
	name := filenameFromResponse(parsed, resp.Header.Get("Content-Disposition"), ct)
	key, err := r.store.Store(ctx, data, name, ct)
	if err != nil {
		r.logger.Debug("session video store failed", zap.String("url", videoURL), zap.Error(err))
		return "", false
	}
	r.logger.Info("session video stored", zap.String("key", key))
	return key, true
}
