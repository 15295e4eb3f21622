package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/observability"
	"artenis/internal/storage"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaMaxUploadMB = 10
	MasterMaxSize           = 2048
	WebPQuality             = 80
	MaxFilesPerUpload       = 10
)

const (
	mediaKindImage = "image"
	mediaKindVideo = "video"
)

var videoExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

type MediaService struct {
	store              storage.ObjectStore
	maxUploadSizeBytes int64
}

func NewMediaService(store storage.ObjectStore, maxUploadMB int) *MediaService {
	if maxUploadMB <= 0 {
		maxUploadMB = DefaultMediaMaxUploadMB
	}
	return &MediaService{store: store, maxUploadSizeBytes: int64(maxUploadMB) << 20}
}

// Upload validates and stores every file and returns their public URLs in
// order. Objects stored before a failing file are removed again.
func (s *MediaService) Upload(ctx context.Context, userID uint, files []UploadFile) ([]string, error) {
	if userID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(files) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if len(files) > MaxFilesPerUpload {
		return nil, models.NewValidationError(fmt.Sprintf("Too many files (max %d)", MaxFilesPerUpload))
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.uploadOne(ctx, userID, f)
		if err != nil {
			s.DeleteURLs(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *MediaService) uploadOne(ctx context.Context, userID uint, f UploadFile) (string, error) {
	if len(f.Content) == 0 {
		return "", models.NewValidationError("Empty file")
	}
	if int64(len(f.Content)) > s.maxUploadSizeBytes {
		observability.MediaUploads.WithLabelValues("unknown", "too_large").Inc()
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes>>20))
	}

	contentType := normalizeContentType(f.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = normalizeContentType(http.DetectContentType(f.Content))
	}

	var (
		body []byte
		ext  string
		kind string
	)
	switch {
	case isAllowedImageMIME(contentType):
		kind = mediaKindImage
		encoded, err := processImage(f.Content)
		if err != nil {
			observability.MediaUploads.WithLabelValues(kind, "invalid").Inc()
			return "", err
		}
		body, ext, contentType = encoded, ".webp", "image/webp"
	case videoExtensions[contentType] != "":
		kind = mediaKindVideo
		body, ext = f.Content, videoExtensions[contentType]
	default:
		observability.MediaUploads.WithLabelValues("unknown", "rejected").Inc()
		return "", models.NewValidationError("Unsupported file type")
	}

	key := fmt.Sprintf("posts/%d/%s%s", userID, uuid.NewString(), ext)
	url, err := s.store.Put(ctx, key, contentType, body)
	if err != nil {
		observability.MediaUploads.WithLabelValues(kind, "error").Inc()
		return "", models.NewInternalError(err)
	}
	observability.MediaUploads.WithLabelValues(kind, "ok").Inc()
	observability.MediaUploadBytes.Observe(float64(len(body)))
	return url, nil
}

// DeleteURLs removes stored objects behind urls. URLs that do not belong to
// the store are skipped; failures are logged.
func (s *MediaService) DeleteURLs(ctx context.Context, urls []string) {
	for _, u := range urls {
		key, ok := s.store.KeyFromURL(u)
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "media delete failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

// processImage decodes, bounds to MasterMaxSize and re-encodes as WebP.
func processImage(content []byte) ([]byte, error) {
	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}
	encoded, err := encodeWebP(resizeToFit(decoded, MasterMaxSize, MasterMaxSize), WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return encoded, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "png", "webp":
		return true
	default:
		return false
	}
}
