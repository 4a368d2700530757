// Package scan validates and decodes uploaded OCT images.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	ErrUnsupportedScanType = errors.New("unsupported scan type")
	// ErrNotRenderable is returned for accepted uploads the server cannot
	// rasterise, such as DICOM.
	ErrNotRenderable = errors.New("scan cannot be rendered")
)

const ContentTypeDICOM = "application/dicom"

var allowedTypes = map[string]string{
	"image/jpeg":     ".jpg",
	"image/png":      ".png",
	"image/bmp":      ".bmp",
	"image/tiff":     ".tiff",
	ContentTypeDICOM: ".dcm",
}

// Validate accepts JPEG, PNG, BMP, TIFF and DICOM uploads. A ".dcm" filename
// is accepted whatever content type the client sent. It returns the
// normalised content type.
func Validate(filename, contentType string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".dcm") {
		return ContentTypeDICOM, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScanType, contentType)
	}
	if _, ok := allowedTypes[mt]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScanType, mt)
	}
	return mt, nil
}

// Extension returns the file extension used when storing a scan of contentType.
func Extension(contentType string) string {
	if ext, ok := allowedTypes[contentType]; ok {
		return ext
	}
	return ".bin"
}

// Decode rasterises an image upload.
func Decode(data []byte, contentType string) (image.Image, error) {
	if contentType == ContentTypeDICOM {
		return nil, ErrNotRenderable
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRenderable, err)
	}
	return img, nil
}
