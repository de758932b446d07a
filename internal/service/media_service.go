package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"bloghub/internal/models"
	"bloghub/internal/storage"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxUploadSizeMB = 20
	// MaxImageSize bounds the longest edge of stored images.
	MaxImageSize = 1600
	WebPQuality  = 80
)

var allowedImageMIME = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var allowedVideoMIME = []string{"video/mp4", "video/webm", "video/quicktime", "video/ogg"}

// MediaService validates uploads, normalizes images to WebP and stores blobs.
type MediaService struct {
	blobs    storage.BlobStore
	maxBytes int64
}

func NewMediaService(blobs storage.BlobStore, maxUploadSizeMB int) *MediaService {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	return &MediaService{blobs: blobs, maxBytes: int64(maxUploadSizeMB) * 1024 * 1024}
}

// SaveImage decodes an uploaded image, shrinks it to fit MaxImageSize and
// stores it as WebP.
func (s *MediaService) SaveImage(ctx context.Context, content []byte, opts ...storage.StoreOption) (string, error) {
	if err := s.checkSize(content); err != nil {
		return "", err
	}
	mt := mimetype.Detect(content)
	if !mimetype.EqualsAny(mt.String(), allowedImageMIME...) {
		return "", models.NewFieldValidationError("Invalid image type", map[string]string{"image": "must be a JPEG, PNG, GIF or WebP image"})
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewFieldValidationError("Invalid image file", map[string]string{"image": "could not be decoded"})
	}

	encoded, err := encodeWebP(resizeToFit(decoded, MaxImageSize, MaxImageSize), WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	path, err := s.blobs.Store(ctx, encoded, ".webp", opts...)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return path, nil
}

// SaveVideo stores an uploaded video unchanged under the extension of its
// detected type.
func (s *MediaService) SaveVideo(ctx context.Context, content []byte) (string, error) {
	if err := s.checkSize(content); err != nil {
		return "", err
	}
	mt := mimetype.Detect(content)
	if !mimetype.EqualsAny(mt.String(), allowedVideoMIME...) {
		return "", models.NewFieldValidationError("Invalid video type", map[string]string{"video": "must be an MP4, WebM, MOV or Ogg video"})
	}
	path, err := s.blobs.Store(ctx, content, mt.Extension())
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return path, nil
}

// Delete removes a stored blob, logging rather than failing.
func (s *MediaService) Delete(ctx context.Context, path string) {
	removeBlobs(ctx, s.blobs, path)
}

func (s *MediaService) checkSize(content []byte) error {
	if len(content) == 0 {
		return models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	return nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
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
