package assetstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveMIME(t *testing.T) {
	tests := []struct {
		name     string
		reported string
		detected string
		filename string
		want     string
	}{
		{"declared wins", "image/jpeg", "image/png", "x.gif", "image/jpeg"},
		{"declared lowercased", "IMAGE/JPEG", "", "", "image/jpeg"},
		{"octet-stream ignored", "application/octet-stream", "image/png", "", "image/png"},
		{"detected wins over name", "", "image/webp", "x.jpg", "image/webp"},
		{"extension fallback", "", "", "photo.HEIC", "image/heic"},
		{"nothing usable", "", "", "download", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveMIME(tt.reported, tt.detected, tt.filename))
		})
	}
}

func TestExtensionForMIME(t *testing.T) {
	require.Equal(t, "jpg", ExtensionForMIME("image/jpeg", ""))
	require.Equal(t, "webp", ExtensionForMIME("image/webp", ""))
	require.Equal(t, "mp4", ExtensionForMIME("video/mp4", ""))
	require.Equal(t, "png", ExtensionForMIME("application/octet-stream", "shot.png"))
	require.Equal(t, "bin", ExtensionForMIME("application/octet-stream", "blob"))
}

func TestSafeFilename(t *testing.T) {
	require.Equal(t, "photo_2026.jpg", SafeFilename(`photo"2026.jpg`))
	require.Equal(t, "a_b_c", SafeFilename("a/b\\c"))
	require.Equal(t, "file", SafeFilename("   "))
}

func TestIsImageMIME(t *testing.T) {
	require.True(t, IsImageMIME("image/jpeg"))
	require.True(t, IsImageMIME("IMAGE/WEBP"))
	require.False(t, IsImageMIME("video/mp4"))
	require.False(t, IsImageMIME(""))
}
