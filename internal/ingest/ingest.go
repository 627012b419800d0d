package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/assetstore"
	"github.com/nemo-app/photoingest/internal/fetch"
	"github.com/nemo-app/photoingest/internal/metrics"
	"github.com/nemo-app/photoingest/internal/publisher"
)

// Config bounds one resolution walk.
type Config struct {
	MaxRedirects   int
	MaxHTMLFollows int
	MinImageBytes  int

	// PublishTopic, when set, names the topic ingest completion events go
	// to.
	PublishTopic string
}

// Service turns QR payloads and binary uploads into stored assets. It is
// stateless between calls and safe for concurrent use.
// defaultSiblingImageHost is the booth resource host that keeps an
// image.jpg next to every video.mp4.
const defaultSiblingImageHost = "pg-qr-resource"

type Service struct {
	fetcher     *fetch.Client
	store       *assetstore.Store
	vendors     []vendorResolver
	pub         publisher.Publisher
	logger      *zap.Logger
	cfg         Config
	siblingHost string
}

// Option customizes a Service.
type Option func(*Service)

// WithVendorResolvers replaces the default vendor resolver chain. Order
// matters: the first match wins.
func WithVendorResolvers(resolvers ...vendorResolver) Option {
	return func(s *Service) { s.vendors = resolvers }
}

// WithPublisher sets the completion event publisher.
func WithPublisher(pub publisher.Publisher) Option {
	return func(s *Service) { s.pub = pub }
}

// WithSiblingImageHost overrides the host allowed to serve a sibling
// still image next to a terminal video.
func WithSiblingImageHost(host string) Option {
	return func(s *Service) { s.siblingHost = strings.ToLower(host) }
}

// NewService wires an ingest pipeline around a fetcher and an asset store.
func NewService(fetcher *fetch.Client, store *assetstore.Store, logger *zap.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		store:       store,
		pub:         publisher.NoOp{},
		logger:      logger,
		cfg:         cfg,
		siblingHost: defaultSiblingImageHost,
	}
	s.vendors = []vendorResolver{
		newWebQRResolver(logger),
		newSessionResolver(fetcher, store, cfg.MinImageBytes, logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest resolves one request to a stored asset. Exactly one of
// req.Binary and req.Payload must be set; violations map to
// ErrInvalidPayload.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (ResolvedAsset, error) {
	asset, err := s.ingest(ctx, req)
	if err != nil {
		metrics.ObserveResolve("error")
		return ResolvedAsset{}, err
	}
	metrics.ObserveResolve("ok")
	s.publishEvent(ctx, req, asset)
	return asset, nil
}

func (s *Service) ingest(ctx context.Context, req IngestRequest) (ResolvedAsset, error) {
	hasBinary := len(req.Binary) > 0
	hasPayload := req.Payload != ""

	switch {
	case hasBinary && hasPayload:
		return ResolvedAsset{}, fmt.Errorf("%w: both binary and payload present", ErrInvalidPayload)
	case hasBinary:
		return s.ingestBinary(ctx, req)
	case hasPayload:
		return s.ingestPayload(ctx, req)
	default:
		return ResolvedAsset{}, fmt.Errorf("%w: empty request", ErrInvalidPayload)
	}
}

func (s *Service) ingestBinary(ctx context.Context, req IngestRequest) (ResolvedAsset, error) {
	key, err := s.store.Store(ctx, req.Binary, req.Filename, req.ContentType)
	if err != nil {
		if isRejectedUpload(err) {
			return ResolvedAsset{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return ResolvedAsset{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	now := time.Now()
	return ResolvedAsset{
		ImageKey:     key,
		ThumbnailKey: key,
		TakenAt:      &now,
	}, nil
}

func (s *Service) ingestPayload(ctx context.Context, req IngestRequest) (ResolvedAsset, error) {
	if !looksLikeURL(req.Payload) {
		return ResolvedAsset{}, fmt.Errorf("%w: payload is not an http(s) url", ErrInvalidPayload)
	}

	res := newResolution(req.Payload)
	if err := s.walk(ctx, res); err != nil {
		return ResolvedAsset{}, err
	}
	if res.imageKey == "" {
		return ResolvedAsset{}, fmt.Errorf("%w: no still image resolved from %s", ErrUpstream, req.Payload)
	}

	now := time.Now()
	asset := ResolvedAsset{
		ImageKey:     res.imageKey,
		ThumbnailKey: res.thumbKey,
		TakenAt:      &now,
		Brand:        inferBrand(req.Payload),
		videoKey:     res.videoKey,
	}
	s.logger.Info("payload resolved",
		zap.String("image_key", asset.ImageKey),
		zap.String("brand", asset.Brand),
		zap.Bool("has_video", res.videoKey != ""))
	return asset, nil
}

// publishEvent emits the completion event best-effort; publish failures
// never fail the ingest.
func (s *Service) publishEvent(ctx context.Context, req IngestRequest, asset ResolvedAsset) {
	if s.cfg.PublishTopic == "" || !asset.HasImage() {
		return
	}
	event := publisher.IngestEvent{
		ImageKey:    asset.ImageKey,
		Brand:       asset.Brand,
		PayloadHost: hostOf(req.Payload),
	}
	if _, err := s.pub.Publish(ctx, s.cfg.PublishTopic, event); err != nil {
		s.logger.Warn("ingest event publish failed",
			zap.String("topic", s.cfg.PublishTopic), zap.Error(err))
	}
}

// isRejectedUpload reports whether a store error means the caller sent
// something that is not media, as opposed to the backend failing.
func isRejectedUpload(err error) bool {
	return errors.Is(err, assetstore.ErrEmptyData) || errors.Is(err, assetstore.ErrNotMedia)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
