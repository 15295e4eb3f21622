package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"artenis/internal/models"
	"artenis/internal/storage"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*storage.MemoryStore
	failAfter int
	puts      int
}

func (f *failingStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	f.puts++
	if f.puts > f.failAfter {
		return "", errors.New("bucket unavailable")
	}
	return f.MemoryStore.Put(ctx, key, contentType, body)
}

func TestMediaServiceUploadImageStoresWebP(t *testing.T) {
	store := storage.NewMemoryStore("/media")
	svc := NewMediaService(store, 10)

	urls, err := svc.Upload(context.Background(), 42, []UploadFile{{
		Filename:    "tattoo.png",
		ContentType: "image/png",
		Content:     noisyPNG(t, 2200, 1100),
	}})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.True(t, strings.HasPrefix(urls[0], "/media/posts/42/"))
	assert.True(t, strings.HasSuffix(urls[0], ".webp"))

	key, ok := store.KeyFromURL(urls[0])
	require.True(t, ok)
	obj, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", obj.ContentType)

	cfg, err := webp.DecodeConfig(bytes.NewReader(obj.Body))
	require.NoError(t, err)
	assert.Equal(t, MasterMaxSize, cfg.Width)
	assert.Equal(t, MasterMaxSize/2, cfg.Height)
}

func TestMediaServiceUploadVideoStoredAsIs(t *testing.T) {
	store := storage.NewMemoryStore("/media")
	svc := NewMediaService(store, 10)

	content := []byte("\x00\x00\x00\x18ftypmp42 fake video")
	urls, err := svc.Upload(context.Background(), 7, []UploadFile{{
		Filename:    "session.mp4",
		ContentType: "video/mp4",
		Content:     content,
	}})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.True(t, strings.HasSuffix(urls[0], ".mp4"))

	key, _ := store.KeyFromURL(urls[0])
	obj, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, content, obj.Body)
	assert.Equal(t, "video/mp4", obj.ContentType)
}

func TestMediaServiceUploadValidation(t *testing.T) {
	svc := NewMediaService(storage.NewMemoryStore("/media"), 1)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID uint
		files  []UploadFile
	}{
		{"no files", 1, nil},
		{"anonymous", 0, []UploadFile{{ContentType: "image/png", Content: []byte{1}}}},
		{"text file", 1, []UploadFile{{ContentType: "text/plain", Content: []byte("not an image")}}},
		{"too large", 1, []UploadFile{{ContentType: "image/png", Content: bytes.Repeat([]byte{'a'}, 2<<20)}}},
		{"corrupt image", 1, []UploadFile{{ContentType: "image/png", Content: []byte("garbage")}}},
		{"too many", 1, make([]UploadFile, MaxFilesPerUpload+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.userID, tt.files)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeValidation))
		})
	}
}

func TestMediaServiceUploadRollsBackOnFailure(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore("/media"), failAfter: 1}
	svc := NewMediaService(store, 10)

	_, err := svc.Upload(context.Background(), 3, []UploadFile{
		{ContentType: "video/mp4", Content: []byte("first")},
		{ContentType: "video/mp4", Content: []byte("second")},
	})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.Equal(t, 0, store.Len())
}

func TestMediaServiceDeleteURLsSkipsForeign(t *testing.T) {
	store := storage.NewMemoryStore("/media")
	svc := NewMediaService(store, 10)
	url, err := store.Put(context.Background(), "posts/1/a.webp", "image/webp", []byte{1})
	require.NoError(t, err)

	svc.DeleteURLs(context.Background(), []string{"https://elsewhere.example/x.jpg", url})
	assert.Equal(t, 0, store.Len())
}

func TestResizeToFitKeepsSmallImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	assert.Same(t, src, resizeToFit(src, MasterMaxSize, MasterMaxSize))

	big := image.NewRGBA(image.Rect(0, 0, 4096, 1024))
	b := resizeToFit(big, MasterMaxSize, MasterMaxSize).Bounds()
	assert.Equal(t, 2048, b.Dx())
	assert.Equal(t, 512, b.Dy())
}

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	// #nosec G404: weak random is fine for test image generation
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				// #nosec G115: Intn(256) is safe for uint8
				R: uint8(rng.Intn(256)),
				// #nosec G115
				G: uint8(rng.Intn(256)),
				B: 128,
				A: 255,
			})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode noisy png: %v", err)
	}
	return buf.Bytes()
}
