package ingest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtractDownloadAnchor(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/qr/abc")
	html := []byte(`<html><body>
		<a href="/files/photo.jpg" download>save</a>
	</body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://booth.example.com/files/photo.jpg", got)
}

func TestExtractPrefersJPEGSourceInPicture(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body><picture>
		<source type="image/webp" srcset="/img/small.webp 640w, /img/big.webp 1280w">
		<source type="image/jpeg" srcset="/img/small.jpg 640w, /img/big.jpg 1280w">
		<img src="/img/fallback.jpg">
	</picture></body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://booth.example.com/img/big.jpg", got)
}

func TestExtractPicksLargestSrcsetEntry(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body>
		<img srcset="/img/a.jpg 320w, /img/c.jpg 2048w, /img/b.jpg 1024w">
	</body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://booth.example.com/img/c.jpg", got)
}

func TestExtractJSONLD(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><head>
		<script type="application/ld+json">
		{"@type":"Photograph","image":"https:\/\/cdn.example.com\/shots\/full.jpg"}
		</script>
	</head><body><p>no tags here</p></body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://cdn.example.com/shots/full.jpg", got)
}

func TestExtractVideoPoster(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body>
		<video poster="/media/still.jpg"><source src="/media/clip.mp4"></video>
	</body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://booth.example.com/media/still.jpg", got)
}

func TestExtractOGImage(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><head>
		<meta property="og:image" content="https://cdn.example.com/og/photo.jpg">
	</head><body><p>nothing else</p></body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://cdn.example.com/og/photo.jpg", got)
}

func TestExtractFallsBackToFirstImg(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body><img src="/only/one.png"></body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://booth.example.com/only/one.png", got)
}

func TestExtractRawObjectStorageURL(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body><script>
		var u = "https://bucket.s3.amazonaws.com/qrimage/2026/shot.jpg";
	</script></body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://bucket.s3.amazonaws.com/qrimage/2026/shot.jpg", got)
}

func TestExtractEncodedPathOnVendorPage(t *testing.T) {
	base := mustParse(t, "https://life4cut.example.com/view/abc")
	html := []byte(`<html><body data-vendor="life4cut"><script>
		location.href = "/image?url=aHR0cHM6Ly9leGFtcGxl";
	</script></body></html>`)

	got, ok := extractMediaURL(html, base)
	require.True(t, ok)
	require.Equal(t, "https://life4cut.example.com/image?url=aHR0cHM6Ly9leGFtcGxl", got)
}

func TestExtractIgnoresSelfReference(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body><a href="https://booth.example.com/p" download>again</a></body></html>`)

	_, ok := extractMediaURL(html, base)
	require.False(t, ok)
}

func TestExtractNothingFound(t *testing.T) {
	base := mustParse(t, "https://booth.example.com/p")
	html := []byte(`<html><body><p>plain text only</p></body></html>`)

	_, ok := extractMediaURL(html, base)
	require.False(t, ok)
}
