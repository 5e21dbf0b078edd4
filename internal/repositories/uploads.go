package repositories

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const MaxImageSize = 5 << 20 // 5 MiB

// Sentinel errors returned by the image store. Compare with errors.Is.
var (
	// ErrInvalidImageType is returned when the uploaded bytes are not a
	// JPEG, PNG or GIF image.
	ErrInvalidImageType = errors.New("repositories: file is not a supported image type")

	// ErrImageTooLarge is returned when the upload exceeds MaxImageSize.
	ErrImageTooLarge = errors.New("repositories: image exceeds the 5 MiB limit")
)

var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ImageStore writes profile images to a flat content directory on disk.
type ImageStore struct {
	Dir string
}

// NewImageStore ensures the content directory exists.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{Dir: dir}, nil
}

// Store validates and persists one uploaded image, returning the stored
// path. The content type is decided by sniffing the leading bytes rather
// than trusting the declared multipart header. The generated name is a
// timestamp prefix plus the original filename, so repeated uploads of the
// same file never collide. A failed copy removes the partial file; callers
// only ever see a path that exists on disk.
func (s *ImageStore) Store(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if !acceptedImageTypes[http.DetectContentType(sniff[:n])] {
		return "", ErrInvalidImageType
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(header.Filename))
	dstPath := filepath.Join(s.Dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(file, MaxImageSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > MaxImageSize {
		err = ErrImageTooLarge
	}
	if err != nil {
		os.Remove(dstPath)
		if errors.Is(err, ErrImageTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write image file: %w", err)
	}

	return dstPath, nil
}

// Remove deletes a previously stored image, used to undo an upload whose
// record update lost a concurrent race.
func (s *ImageStore) Remove(path string) error {
	return os.Remove(path)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "image"
	}
	return strings.ReplaceAll(base, " ", "_")
}
