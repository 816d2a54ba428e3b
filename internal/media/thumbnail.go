package media

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"media-shelf/internal/database"
	"media-shelf/internal/filesystem"
	"media-shelf/internal/logging"
	"media-shelf/internal/mediatypes"
	"media-shelf/internal/metrics"
)

const (
	// DefaultSize is the default thumbnail bounding box in pixels.
	DefaultSize = 320

	jpegQuality = 80
	thumbMime   = "image/jpeg"

	// coverSearchDepth limits how far below a title folder a cover is looked for.
	coverSearchDepth = 2
)

var (
	// ErrUnsupported is returned for files that cannot be thumbnailed.
	ErrUnsupported = errors.New("unsupported media for thumbnails")

	// ErrNoCover is returned for a title folder without any decodable image.
	ErrNoCover = errors.New("no image found for title")
)

// Generator produces JPEG thumbnails.
type Generator struct {
	size  int
	retry filesystem.RetryConfig
}

// NewGenerator returns a Generator fitting thumbnails into size x size
// pixels. A non-positive size means DefaultSize.
func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{
		size:  size,
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Size returns the bounding box edge in pixels.
func (g *Generator) Size() int {
	return g.size
}

// Generate builds the thumbnail for a registered path.
func (g *Generator) Generate(entry database.PathIdentity) (database.Thumbnail, error) {
	kind := "item"
	if entry.IsTitle {
		kind = "title"
	}

	start := time.Now()
	thumb, err := g.generate(entry.Path)
	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(kind, "error").Inc()
		return database.Thumbnail{}, err
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(kind, "success").Inc()
	logging.Debug("Generated %s thumbnail for %s (%d bytes) in %v", kind, entry.Path, thumb.Size, time.Since(start))
	return thumb, nil
}

func (g *Generator) generate(path string) (database.Thumbnail, error) {
	info, err := filesystem.StatWithRetry(path, g.retry)
	if err != nil {
		return database.Thumbnail{}, fmt.Errorf("file not accessible: %w", err)
	}

	source := path
	if info.IsDir() {
		source, err = findCover(path, coverSearchDepth)
		if err != nil {
			return database.Thumbnail{}, err
		}
	} else if !mediatypes.CanThumbnail(path) {
		return database.Thumbnail{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}

	img, err := LoadImageConstrained(source, g.retry, MaxImageDimension, MaxImagePixels)
	if err != nil {
		return database.Thumbnail{}, fmt.Errorf("thumbnail generation failed for %s: %w", source, err)
	}

	thumb := imaging.Fit(img, g.size, g.size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return database.Thumbnail{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return database.Thumbnail{
		Data:     buf.Bytes(),
		Filename: thumbnailName(path),
		Mime:     thumbMime,
		Size:     int64(buf.Len()),
	}, nil
}

// thumbnailName derives the stored filename, e.g. "Show" -> "Show.jpg" and
// "ep1.png" -> "ep1.jpg".
func thumbnailName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

// findCover returns the first decodable image in dir by name, then
// recurses into subdirectories (also by name) up to depth levels.
func findCover(dir string, depth int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var subdirs []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			subdirs = append(subdirs, p)
			continue
		}
		if mediatypes.CanThumbnail(p) {
			return p, nil
		}
	}

	if depth > 1 {
		for _, sub := range subdirs {
			if cover, err := findCover(sub, depth-1); err == nil {
				return cover, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoCover, dir)
}
