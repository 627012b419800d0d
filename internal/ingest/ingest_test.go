package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemo-app/photoingest/internal/assetstore"
	"github.com/nemo-app/photoingest/internal/assetstore/memory"
	"github.com/nemo-app/photoingest/internal/fetch"
	"github.com/nemo-app/photoingest/internal/publisher"
	pubmem "github.com/nemo-app/photoingest/internal/publisher/memory"
	"github.com/nemo-app/photoingest/internal/transcode"
)

func testServiceConfig() Config {
	return Config{
		MaxRedirects:   5,
		MaxHTMLFollows: 2,
		MinImageBytes:  5 * 1024,
	}
}

func newTestService(t *testing.T, maxBytes int64, cfg Config, opts ...Option) (*Service, *memory.ObjectStore) {
	t.Helper()
	objects := memory.New()
	store := assetstore.New(objects, transcode.New(transcode.DefaultConfig(), zap.NewNop()),
		zap.NewNop(), assetstore.Config{Prefix: "albums", PublicBaseURL: "http://localhost"})
	fetcher := fetch.NewClient(fetch.Config{
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
		UserAgent:      "Mozilla/5.0 Nemo/1.0",
		MaxBytes:       maxBytes,
	})
	return NewService(fetcher, store, zap.NewNop(), cfg, opts...), objects
}

// testJPEG renders a textured frame large enough to clear the minimum
// image size after any compression.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * y) % 251),
				G: uint8((x + 3*y) % 239),
				B: uint8((x ^ y) % 253),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.Greater(t, buf.Len(), 5*1024)
	return buf.Bytes()
}

func testMP4() []byte {
	data := append([]byte{0, 0, 0, 24}, []byte("ftypisom")...)
	return append(data, bytes.Repeat([]byte{3}, 4096)...)
}

func TestIngestDirectImagePayload(t *testing.T) {
	photo := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	}))
	defer srv.Close()

	svc, objects := newTestService(t, 50<<20, testServiceConfig())

	asset, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/shot.jpg"})
	require.NoError(t, err)
	require.True(t, asset.HasImage())
	require.Equal(t, asset.ImageKey, asset.ThumbnailKey)
	require.NotNil(t, asset.TakenAt)

	_, err = objects.Get(context.Background(), asset.ImageKey)
	require.NoError(t, err)
}

func TestIngestRedirectChainToHTMLPage(t *testing.T) {
	photo := testJPEG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/qr", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><meta property="og:image" content="/media/full.jpg"></head><body>booth</body></html>`)
	})
	mux.HandleFunc("/media/full.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, objects := newTestService(t, 50<<20, testServiceConfig())

	asset, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/qr"})
	require.NoError(t, err)
	require.True(t, asset.HasImage())
	require.Len(t, objects.Keys(), 1)
}

func TestIngestFailsAfterRedirectBudget(t *testing.T) {
	mux := http.NewServeMux()
	for i := 0; i < 10; i++ {
		next := fmt.Sprintf("/r%d", i+1)
		mux.HandleFunc(fmt.Sprintf("/r%d", i), func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, next, http.StatusMovedPermanently)
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, _ := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/r0"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "redirect budget")
}

func TestIngestDetectsRedirectLoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, _ := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/a"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "loop")
}

func TestIngestFailsAfterHTMLFollowBudget(t *testing.T) {
	mux := http.NewServeMux()
	for i := 0; i < 5; i++ {
		next := fmt.Sprintf("/h%d", i+1)
		mux.HandleFunc(fmt.Sprintf("/h%d", i), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><body><img src="%s"></body></html>`, next)
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, _ := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/h0"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "html follow budget")
}

func TestIngestRejectsTooSmallImage(t *testing.T) {
	// Valid JPEG bytes, but far below the minimum size: likely a vendor
	// placeholder, not a photo.
	tiny := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 200)...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(tiny)
	}))
	defer srv.Close()

	svc, _ := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/x.jpg"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "below minimum")
}

func TestIngestRejectsOversizeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(make([]byte, 8192))
	}))
	defer srv.Close()

	svc, _ := newTestService(t, 1024, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/big.jpg"})
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestIngestStopsOnHTMLErrorPageWithImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, `<!DOCTYPE html><html><body>link expired</body></html>`)
	}))
	defer srv.Close()

	svc, objects := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/gone.jpg"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Empty(t, objects.Keys())
}

func TestIngestStoresAttachmentDownload(t *testing.T) {
	// Some booths serve downloads without any sniffable signature; the
	// attachment disposition marks them as terminal media.
	blob := bytes.Repeat([]byte{0x01, 0x55, 0x9A}, 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="frames.raw"`)
		w.Write(blob)
	}))
	defer srv.Close()

	svc, objects := newTestService(t, 50<<20, testServiceConfig())

	asset, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/download"})
	require.NoError(t, err)
	require.True(t, asset.HasImage())

	stored, err := objects.Get(context.Background(), asset.ImageKey)
	require.NoError(t, err)
	require.Equal(t, blob, stored)
}

func TestIngestVideoStoresSiblingStill(t *testing.T) {
	photo := testJPEG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/s/abc/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(testMP4())
	})
	mux.HandleFunc("/s/abc/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, objects := newTestService(t, 50<<20, testServiceConfig(), WithSiblingImageHost("127.0.0.1"))

	asset, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/s/abc/video.mp4"})
	require.NoError(t, err)
	require.True(t, asset.HasImage())
	require.NotEmpty(t, asset.videoKey)
	require.Len(t, objects.Keys(), 2)
}

func TestIngestVideoSkipsSiblingOnForeignHost(t *testing.T) {
	// Only the booth resource host keeps image.jpg next to video.mp4;
	// arbitrary hosts never get the sibling lookup even when the file
	// happens to exist.
	photo := testJPEG(t)
	var imageHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/s/abc/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(testMP4())
	})
	mux.HandleFunc("/s/abc/image.jpg", func(w http.ResponseWriter, r *http.Request) {
		imageHits++
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, objects := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/s/abc/video.mp4"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "no still image")
	require.Zero(t, imageHits)
	require.Len(t, objects.Keys(), 1)
}

func TestIngestVideoWithoutStillFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/clip/video.mp4" {
			w.Header().Set("Content-Type", "video/mp4")
			w.Write(testMP4())
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc, _ := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/clip/video.mp4"})
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "no still image")
}

func TestIngestInvalidPayloads(t *testing.T) {
	svc, _ := newTestService(t, 50<<20, testServiceConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"empty request", IngestRequest{}},
		{"not a url", IngestRequest{Payload: "hello photobooth"}},
		{"unsupported scheme", IngestRequest{Payload: "ftp://example.com/x.jpg"}},
		{"both binary and payload", IngestRequest{Payload: "https://example.com", Binary: []byte{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(ctx, tt.req)
			require.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestIngestBinaryUpload(t *testing.T) {
	svc, objects := newTestService(t, 50<<20, testServiceConfig())

	asset, err := svc.Ingest(context.Background(), IngestRequest{
		Binary:      testJPEG(t),
		ContentType: "image/jpeg",
		Filename:    "upload.jpg",
	})
	require.NoError(t, err)
	require.True(t, asset.HasImage())
	require.Len(t, objects.Keys(), 1)
}

func TestIngestBinaryUploadRejectsHTML(t *testing.T) {
	svc, _ := newTestService(t, 50<<20, testServiceConfig())

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Binary:      []byte("<!DOCTYPE html><html></html>"),
		ContentType: "image/jpeg",
		Filename:    "sneaky.jpg",
	})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestIngestPublishesCompletionEvent(t *testing.T) {
	photo := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(photo)
	}))
	defer srv.Close()

	pub := pubmem.New()
	cfg := testServiceConfig()
	cfg.PublishTopic = "photo-ingested"
	svc, _ := newTestService(t, 50<<20, cfg, WithPublisher(pub))

	asset, err := svc.Ingest(context.Background(), IngestRequest{Payload: srv.URL + "/shot.jpg"})
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "photo-ingested", msgs[0].Topic)

	event, ok := msgs[0].Payload.(publisher.IngestEvent)
	require.True(t, ok)
	require.Equal(t, asset.ImageKey, event.ImageKey)
	require.NotEmpty(t, event.PayloadHost)
}
