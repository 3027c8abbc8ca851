package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	domain "github.com/core2cover/api/internal/domain"
)

const defaultUploadTTL = 15 * time.Minute

var (
	// ErrContentTypeDenied is returned for uploads outside the allowed image types.
	ErrContentTypeDenied = errors.New("storage: content type not allowed")
	// ErrUploadTooLarge is returned when the declared size exceeds the bucket limit.
	ErrUploadTooLarge = errors.New("storage: upload exceeds size limit")
)

// DefaultImageContentTypes lists the media types accepted for product and return images.
var DefaultImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// UploadSigner issues V4 signed PUT URLs so clients upload images straight to the media bucket.
type UploadSigner struct {
	signer       Signer
	bucket       string
	ttl          time.Duration
	maxBytes     int64
	contentTypes []string
	now          func() time.Time
}

// UploadOption customises an UploadSigner.
type UploadOption func(*UploadSigner)

// WithUploadTTL overrides how long signed URLs stay valid.
func WithUploadTTL(ttl time.Duration) UploadOption {
	return func(s *UploadSigner) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxUploadBytes caps the object size through x-goog-content-length-range.
func WithMaxUploadBytes(n int64) UploadOption {
	return func(s *UploadSigner) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithClock injects a custom clock.
func WithClock(now func() time.Time) UploadOption {
	return func(s *UploadSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewUploadSigner constructs an UploadSigner for bucket.
func NewUploadSigner(signer Signer, bucket string, opts ...UploadOption) (*UploadSigner, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errors.New("storage: signer is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	s := &UploadSigner{
		signer:       signer,
		bucket:       bucket,
		ttl:          defaultUploadTTL,
		contentTypes: DefaultImageContentTypes,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SignedUpload signs a PUT for objectPath. The client must send the returned headers verbatim.
func (s *UploadSigner) SignedUpload(ctx context.Context, objectPath, contentType string, sizeBytes int64) (domain.SignedUpload, error) {
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" {
		return domain.SignedUpload{}, errors.New("storage: object path is required")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !s.allowed(contentType) {
		return domain.SignedUpload{}, fmt.Errorf("%w: %q", ErrContentTypeDenied, contentType)
	}
	if s.maxBytes > 0 && sizeBytes > s.maxBytes {
		return domain.SignedUpload{}, fmt.Errorf("%w: %d > %d bytes", ErrUploadTooLarge, sizeBytes, s.maxBytes)
	}

	headers := map[string]string{"Content-Type": contentType}
	var extHeaders []string
	if s.maxBytes > 0 {
		lengthRange := fmt.Sprintf("0,%d", s.maxBytes)
		headers["x-goog-content-length-range"] = lengthRange
		extHeaders = append(extHeaders, "x-goog-content-length-range:"+lengthRange)
	}

	expiresAt := s.now().Add(s.ttl)
	signedURL, err := gcs.SignedURL(s.bucket, objectPath, &gcs.SignedURLOptions{
		GoogleAccessID: s.signer.Email(),
		Scheme:         gcs.SigningSchemeV4,
		Method:         "PUT",
		ContentType:    contentType,
		Headers:        extHeaders,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return domain.SignedUpload{}, fmt.Errorf("storage: sign upload url: %w", err)
	}

	return domain.SignedUpload{
		URL:        signedURL,
		Method:     "PUT",
		Headers:    headers,
		ObjectPath: objectPath,
		ExpiresAt:  expiresAt,
	}, nil
}

func (s *UploadSigner) allowed(contentType string) bool {
	for _, candidate := range s.contentTypes {
		if candidate == contentType {
			return true
		}
	}
	return false
}
