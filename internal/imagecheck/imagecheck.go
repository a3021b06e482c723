// Package imagecheck rejects uploads the face service would refuse before a
// network call is made.
package imagecheck

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// Limits accepted by the detect endpoint.
const (
	MinFileSize  = 1 << 10
	MaxFileSize  = 6 << 20
	MinDimension = 36
	MaxDimension = 4096
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileSize          = errors.New("image file size out of range")
	ErrDimensions        = errors.New("image dimensions out of range")
)

// Info describes a validated image.
type Info struct {
	Format string
	Width  int
	Height int
}

// Validate decodes the image header of data and checks it against the limits.
func Validate(data []byte) (Info, error) {
	if len(data) < MinFileSize || len(data) > MaxFileSize {
		return Info{}, fmt.Errorf("%w: %d bytes, allowed %d to %d", ErrFileSize, len(data), MinFileSize, MaxFileSize)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	info := Info{Format: format, Width: cfg.Width, Height: cfg.Height}
	if !inRange(cfg.Width) || !inRange(cfg.Height) {
		return info, fmt.Errorf("%w: %dx%d, each side must be %d to %d pixels", ErrDimensions, cfg.Width, cfg.Height, MinDimension, MaxDimension)
	}
	return info, nil
}

func inRange(v int) bool {
	return v >= MinDimension && v <= MaxDimension
}
