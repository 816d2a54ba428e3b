package media

import (
	"fmt"
	"image"

	"media-shelf/internal/filesystem"
	"media-shelf/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the maximum width or height decoded at full size.
	// Larger images are downscaled before thumbnailing.
	MaxImageDimension = 4096

	// MaxImagePixels bounds width*height (~80MB as RGBA).
	MaxImagePixels = 20_000_000
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions reads only the image header.
func GetImageDimensions(path string, retry filesystem.RetryConfig) (ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return ImageDimensions{}, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return ImageDimensions{}, err
	}
	return ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// constrainedSize returns the size an image of w x h is reduced to before
// further processing, and whether any reduction is needed.
func constrainedSize(w, h, maxDimension, maxPixels int) (int, int, bool) {
	if w <= maxDimension && h <= maxDimension && w*h <= maxPixels {
		return w, h, false
	}

	tw, th := w, h
	if tw > maxDimension || th > maxDimension {
		if tw > th {
			th = th * maxDimension / tw
			tw = maxDimension
		} else {
			tw = tw * maxDimension / th
			th = maxDimension
		}
	}

	if tw*th > maxPixels {
		scale := float64(maxPixels) / float64(tw*th)
		tw = int(float64(tw) * scale)
		th = int(float64(th) * scale)
	}

	return max(tw, 1), max(th, 1), true
}

// LoadImageConstrained decodes an image, honouring EXIF orientation, and
// downscales it when it exceeds the given limits.
func LoadImageConstrained(path string, retry filesystem.RetryConfig, maxDimension, maxPixels int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	dims, err := GetImageDimensions(path, retry)
	if err != nil {
		logging.Debug("Could not read dimensions of %s: %v, using decoded bounds", path, err)
		b := img.Bounds()
		dims = ImageDimensions{Width: b.Dx(), Height: b.Dy()}
	}

	tw, th, constrain := constrainedSize(dims.Width, dims.Height, maxDimension, maxPixels)
	if !constrain {
		return img, nil
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, dims.Width, dims.Height, tw, th)
	return imaging.Fit(img, tw, th, imaging.Lanczos), nil
}
