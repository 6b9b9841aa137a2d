package extraction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotrace/emotrace-backend/pkg/config"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
)

func newTestExtractor(maxMB int) *Extractor {
	return NewExtractor(config.UploadConfig{
		MaxUploadMB:    maxMB,
		ExtractTimeout: 5 * time.Second,
	}, nil)
}

func TestExtractDirectImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	file, err := newTestExtractor(10).Extract(context.Background(), server.URL+"/photos/face.jpg")
	require.NoError(t, err)
	assert.Equal(t, "face.jpg", file.Filename)
	assert.Equal(t, "image/jpeg", file.ContentType)
	assert.Equal(t, []byte("jpeg-bytes"), file.Data)
}

func TestExtractResolvesOpenGraphMedia(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="a post"/>
			<meta property="og:video" content="/videos/clip.mp4"/>
		</head></html>`))
	})
	mux.HandleFunc("/videos/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4-bytes"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	file, err := newTestExtractor(10).Extract(context.Background(), server.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", file.Filename)
	assert.Equal(t, "video/mp4", file.ContentType)
	assert.Equal(t, []byte("mp4-bytes"), file.Data)
}

func TestExtractPageWithoutMediaTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>nothing here</title></head></html>"))
	}))
	defer server.Close()

	_, err := newTestExtractor(10).Extract(context.Background(), server.URL)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeExtraction, typed.Code())
}

func TestExtractUnsupportedContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-"))
	}))
	defer server.Close()

	_, err := newTestExtractor(10).Extract(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeExtraction, pkgerrors.As(err).Code())
}

func TestExtractRejectsOversizedMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(strings.Repeat("x", 2*1024*1024)))
	}))
	defer server.Close()

	_, err := newTestExtractor(1).Extract(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeExtraction, pkgerrors.As(err).Code())
}

func TestExtractRejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com/file", "not-a-url"} {
		_, err := newTestExtractor(10).Extract(context.Background(), raw)
		require.Error(t, err, "url %q", raw)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}

func TestExtractNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestExtractor(10).Extract(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeExtraction, pkgerrors.As(err).Code())
}
