package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"
	"path/filepath"
	"strings"

	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultMediaMaxUploadBytes = 50 * 1024 * 1024
	MediaMasterMaxSize         = 2048
	MediaThumbnailMaxSize      = 320
	MediaJPEGQuality           = 82
	MediaWebPQuality           = 70
)

var allowedMediaExtensions = map[string]models.MediaType{
	".jpg":  models.MediaTypeImage,
	".jpeg": models.MediaTypeImage,
	".png":  models.MediaTypeImage,
	".mp4":  models.MediaTypeVideo,
	".mov":  models.MediaTypeVideo,
	".avi":  models.MediaTypeVideo,
}

var videoContentTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".avi": "video/x-msvideo",
}

// Upload is a file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// StoredMedia describes an upload after it was written to the blob store.
type StoredMedia struct {
	URL          string
	Key          string
	ThumbnailURL string
	ThumbnailKey string
	Type         models.MediaType
}

// Keys returns every object key written for this media.
func (m *StoredMedia) Keys() []string {
	if m == nil {
		return nil
	}
	keys := []string{m.Key}
	if m.ThumbnailKey != "" {
		keys = append(keys, m.ThumbnailKey)
	}
	return keys
}

// MediaService validates uploads, normalises images and writes them to a BlobStore.
type MediaService struct {
	store    storage.BlobStore
	maxBytes int64
}

// NewMediaService returns a MediaService. maxBytes <= 0 selects DefaultMediaMaxUploadBytes.
func NewMediaService(store storage.BlobStore, maxBytes int64) *MediaService {
	if maxBytes <= 0 {
		maxBytes = DefaultMediaMaxUploadBytes
	}
	return &MediaService{store: store, maxBytes: maxBytes}
}

// MediaTypeOf classifies a file by extension, rejecting anything that is not
// an accepted image or video.
func MediaTypeOf(filename string) (models.MediaType, error) {
	t, ok := allowedMediaExtensions[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", models.NewValidationError("Images & videos only!")
	}
	return t, nil
}

// Save stores up under prefix. Images are re-encoded as JPEG with a WebP
// thumbnail; videos are stored unchanged.
func (s *MediaService) Save(ctx context.Context, prefix string, up Upload) (*StoredMedia, error) {
	if up.Content == nil {
		return nil, models.NewValidationError("No file uploaded")
	}
	mediaType, err := MediaTypeOf(up.Filename)
	if err != nil {
		return nil, err
	}
	if up.Size > s.maxBytes {
		return nil, s.tooLarge()
	}

	if mediaType == models.MediaTypeVideo {
		return s.saveVideo(ctx, prefix, up)
	}
	return s.saveImage(ctx, prefix, up)
}

func (s *MediaService) tooLarge() error {
	return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
}

func (s *MediaService) saveVideo(ctx context.Context, prefix string, up Upload) (*StoredMedia, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	key := storage.NewObjectKey(prefix, ext)
	url, err := s.store.Put(ctx, key, up.Content, up.Size, videoContentTypes[ext])
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &StoredMedia{URL: url, Key: key, Type: models.MediaTypeVideo}, nil
}

func (s *MediaService) saveImage(ctx context.Context, prefix string, up Upload) (*StoredMedia, error) {
	content, err := io.ReadAll(io.LimitReader(up.Content, s.maxBytes+1))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if int64(len(content)) > s.maxBytes {
		return nil, s.tooLarge()
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if format != "jpeg" && format != "png" {
		return nil, models.NewValidationError("Unsupported image format")
	}

	master, err := encodeJPEG(resizeToFit(decoded, MediaMasterMaxSize, MediaMasterMaxSize), MediaJPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	thumb, err := encodeWebP(resizeToFit(decoded, MediaThumbnailMaxSize, MediaThumbnailMaxSize), MediaWebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	key := storage.NewObjectKey(prefix, ".jpg")
	url, err := s.store.Put(ctx, key, bytes.NewReader(master), int64(len(master)), "image/jpeg")
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	thumbKey := strings.TrimSuffix(key, ".jpg") + "_thumb.webp"
	thumbURL, err := s.store.Put(ctx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/webp")
	if err != nil {
		s.Remove(ctx, key)
		return nil, models.NewInternalError(err)
	}

	return &StoredMedia{
		URL:          url,
		Key:          key,
		ThumbnailURL: thumbURL,
		ThumbnailKey: thumbKey,
		Type:         models.MediaTypeImage,
	}, nil
}

// Remove deletes stored objects. Failures are logged; a leftover object is
// not worth failing the caller over.
func (s *MediaService) Remove(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete media object", "key", key, "error", err)
		}
	}
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

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
