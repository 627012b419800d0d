package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilenameFromResponse(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		disposition string
		contentType string
		want        string
	}{
		{
			name:        "rfc5987 encoded filename",
			url:         "https://cdn.example.com/d",
			disposition: "attachment; filename*=UTF-8''%ED%8F%AC%ED%86%A0.jpg",
			want:        "포토.jpg",
		},
		{
			name:        "quoted filename",
			url:         "https://cdn.example.com/d",
			disposition: `inline; filename="booth shot.jpg"`,
			want:        "booth shot.jpg",
		},
		{
			name:        "unquoted filename",
			url:         "https://cdn.example.com/d",
			disposition: "attachment; filename=photo.png",
			want:        "photo.png",
		},
		{
			name: "url basename",
			url:  "https://cdn.example.com/shots/image.jpg",
			want: "image.jpg",
		},
		{
			name:        "extension from content type",
			url:         "https://cdn.example.com/download",
			contentType: "image/jpeg",
			want:        "download.jpg",
		},
		{
			name:        "no path at all",
			url:         "https://cdn.example.com",
			contentType: "image/png",
			want:        "file.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := mustParse(t, tt.url)
			got := filenameFromResponse(u, tt.disposition, tt.contentType)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestInferBrand(t *testing.T) {
	require.Equal(t, "life4cut", inferBrand("https://api.life4cut.net/v1/qr?x=1"))
	require.Equal(t, "harufilm", inferBrand("http://h.harufilm.com/abc"))
	require.Equal(t, "photoism", inferBrand("https://qr.photoism.co.kr/x"))
	require.Equal(t, "photosignature", inferBrand("https://sg.photosignature.co.kr/signature/1"))
	require.Equal(t, "twinphoto", inferBrand("https://twin.example.com/qr"))
	require.Equal(t, "photogray", inferBrand("https://photogray-download.aprd.io?id=x"))
	require.Equal(t, "photogray", inferBrand("https://pg-qr-resource.aprd.io/s/image.jpg"))
	require.Equal(t, "", inferBrand("https://unknownbooth.example.com/p"))
}
