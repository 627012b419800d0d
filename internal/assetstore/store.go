// Package assetstore persists validated media bytes under generated keys.
//
// The store resolves the final MIME type (declared header, then magic
// numbers, then filename extension), runs image bytes through the
// compressor, and writes the result to an ObjectStore backend. Keys combine
// a date partition, a UUID, and an inferred extension; callers turn keys
// into public URLs by prefixing a configured base path.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/fetch"
	"github.com/nemo-app/photoingest/internal/id/uuid"
	"github.com/nemo-app/photoingest/internal/metrics"
	"github.com/nemo-app/photoingest/internal/transcode"
)

// Errors surfaced by the asset store.
var (
	ErrEmptyData = errors.New("empty data")
	ErrNotMedia  = errors.New("content is HTML or JSON, not media")
	ErrNotFound  = errors.New("object not found")
)

// ObjectStore is the backing blob contract. Writes are atomic per key: a
// reader never observes a partial object.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType, disposition string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Config parameterizes key layout and public URL construction.
type Config struct {
	Prefix        string
	PublicBaseURL string
}

// Store validates, transcodes, and persists media bytes.
type Store struct {
	objects    ObjectStore
	compressor *transcode.Compressor
	ids        *uuid.Generator
	logger     *zap.Logger
	prefix     string
	publicBase string
}

// New constructs a Store over the given backend.
func New(objects ObjectStore, compressor *transcode.Compressor, logger *zap.Logger, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "albums"
	}
	return &Store{
		objects:    objects,
		compressor: compressor,
		ids:        uuid.NewGenerator(),
		logger:     logger,
		prefix:     prefix,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// Store persists data under a generated key and returns the key.
// HTML/JSON bytes are rejected outright. Image bytes run through the
// compression chain first; a chain that finds no gain keeps the original
// bytes, but an undecodable image fails the whole store.
func (s *Store) Store(ctx context.Context, data []byte, filename, declaredMime string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyData
	}
	if fetch.LooksLikeHTMLOrJSON(data) {
		return "", ErrNotMedia
	}

	detected := fetch.DetectMIME(data)
	mime := ResolveMIME(declaredMime, detected, filename)
	originalSize := len(data)

	s.logger.Info("store start",
		zap.String("name", filename),
		zap.Int("bytes", originalSize),
		zap.String("declared_mime", declaredMime),
		zap.String("detected_mime", detected))

	if IsImageMIME(mime) {
		compressed, finalMime, err := s.compressor.Compress(data, mime)
		if err != nil {
			return "", fmt.Errorf("compress image: %w", err)
		}
		metrics.ObserveCompressionSaved(originalSize - len(compressed))
		data = compressed
		mime = finalMime
	}

	key, err := s.buildKey(mime, filename)
	if err != nil {
		return "", err
	}

	disposition := fmt.Sprintf("inline; filename=%q", SafeFilename(filename))
	if err := s.objects.Put(ctx, key, mime, disposition, data); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	metrics.ObserveStore(mime, len(data))

	s.logger.Info("store done",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.String("mime", mime))
	return key, nil
}

// Delete removes the object for key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return nil
	}
	if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Size returns the stored byte count for key, or ErrNotFound.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	key = strings.TrimPrefix(key, "/")
	n, err := s.objects.Head(ctx, key)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PublicURL turns a storage key into the caller-facing download URL.
func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/files/%s", s.publicBase, key)
}

// KeyFromPublicURL inverts PublicURL. It returns false for URLs the store
// does not manage.
func (s *Store) KeyFromPublicURL(url string) (string, bool) {
	if s.publicBase == "" || !strings.HasPrefix(url, s.publicBase) {
		return "", false
	}
	path := strings.TrimPrefix(url, s.publicBase)
	if !strings.HasPrefix(path, "/files/") {
		return "", false
	}
	return strings.TrimPrefix(path, "/files/"), true
}

func (s *Store) buildKey(mime, filename string) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("build key: %w", err)
	}
	now := time.Now()
	ext := ExtensionForMIME(mime, filename)
	return fmt.Sprintf("%s/%s/%s-qr_photo_%d.%s",
		s.prefix, now.Format("2006-01-02"), id, now.UnixMilli(), ext), nil
}
