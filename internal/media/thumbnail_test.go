package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"media-shelf/internal/database"
	"media-shelf/internal/filesystem"
)

// createTestImage writes a gradient image so resizing has something to do.
func createTestImage(t *testing.T, path string, width, height int, format string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image file: %v", err)
	}
	defer f.Close()

	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(f, img)
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func decodeThumb(t *testing.T, thumb database.Thumbnail) image.Config {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb.Data))
	if err != nil {
		t.Fatalf("thumbnail is not a valid image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("thumbnail format = %s, want jpeg", format)
	}
	return cfg
}

func TestGenerateImageItem(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name          string
		file          string
		format        string
		width, height int
		wantW, wantH  int
	}{
		{"landscape jpeg", "wide.jpg", "jpeg", 800, 400, 100, 50},
		{"portrait png", "tall.png", "png", 300, 600, 50, 100},
		{"smaller than box", "tiny.png", "png", 40, 20, 40, 20},
	}

	g := NewGenerator(100)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			createTestImage(t, path, tt.width, tt.height, tt.format)

			thumb, err := g.Generate(database.PathIdentity{Path: path, ID: "x"})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			cfg := decodeThumb(t, thumb)
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("thumbnail is %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
			if thumb.Mime != "image/jpeg" {
				t.Errorf("Mime = %q", thumb.Mime)
			}
			if thumb.Size != int64(len(thumb.Data)) {
				t.Errorf("Size = %d, data is %d bytes", thumb.Size, len(thumb.Data))
			}
		})
	}
}

func TestGenerateTitleFolderUsesFirstImage(t *testing.T) {
	root := t.TempDir()
	title := filepath.Join(root, "Show")
	createTestImage(t, filepath.Join(title, "b.png"), 50, 200, "png")
	createTestImage(t, filepath.Join(title, "a.jpg"), 200, 50, "jpeg")

	thumb, err := NewGenerator(100).Generate(database.PathIdentity{Path: title, ID: "t", IsTitle: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// a.jpg sorts first and is landscape.
	cfg := decodeThumb(t, thumb)
	if cfg.Width != 100 || cfg.Height != 25 {
		t.Errorf("thumbnail is %dx%d, want 100x25 from a.jpg", cfg.Width, cfg.Height)
	}
	if thumb.Filename != "Show.jpg" {
		t.Errorf("Filename = %q, want Show.jpg", thumb.Filename)
	}
}

func TestGenerateTitleFolderSearchesSubfolders(t *testing.T) {
	title := filepath.Join(t.TempDir(), "Series")
	if err := os.WriteFile(filepath.Join(mustMkdir(t, title), "ep1.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	createTestImage(t, filepath.Join(title, "Season 1", "cover.png"), 60, 60, "png")

	if _, err := NewGenerator(32).Generate(database.PathIdentity{Path: title, IsTitle: true}); err != nil {
		t.Errorf("Generate failed: %v", err)
	}
}

func TestGenerateErrors(t *testing.T) {
	root := t.TempDir()

	empty := mustMkdir(t, filepath.Join(root, "Empty"))
	video := filepath.Join(root, "movie.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(root, "broken.jpg")
	if err := os.WriteFile(broken, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"folder without images", empty, ErrNoCover},
		{"video", video, ErrUnsupported},
		{"missing file", filepath.Join(root, "gone.jpg"), os.ErrNotExist},
		{"corrupt image", broken, nil},
	}

	g := NewGenerator(64)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(database.PathIdentity{Path: tt.path})
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Generate(%s) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestNewGeneratorDefaultSize(t *testing.T) {
	if got := NewGenerator(0).Size(); got != DefaultSize {
		t.Errorf("NewGenerator(0).Size() = %d, want %d", got, DefaultSize)
	}
}

func TestThumbnailName(t *testing.T) {
	tests := map[string]string{
		"/media/Show":          "Show.jpg",
		"/media/Show/ep1.png":  "ep1.jpg",
		"/media/a.b.c.webp":    "a.b.c.jpg",
		"/media/Album/IMG.JPG": "IMG.jpg",
	}
	for in, want := range tests {
		if got := thumbnailName(in); got != want {
			t.Errorf("thumbnailName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConstrainedSize(t *testing.T) {
	tests := []struct {
		name          string
		w, h          int
		wantW, wantH  int
		wantConstrain bool
	}{
		{"within limits", 1000, 800, 1000, 800, false},
		{"too wide", 8000, 2000, 4096, 1024, true},
		{"too tall", 1000, 8192, 500, 4096, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, c := constrainedSize(tt.w, tt.h, MaxImageDimension, MaxImagePixels)
			if w != tt.wantW || h != tt.wantH || c != tt.wantConstrain {
				t.Errorf("constrainedSize(%d, %d) = (%d, %d, %v), want (%d, %d, %v)",
					tt.w, tt.h, w, h, c, tt.wantW, tt.wantH, tt.wantConstrain)
			}
		})
	}

	// Pixel budget applies after the dimension cap.
	w, h, _ := constrainedSize(4000, 4000, MaxImageDimension, 1_000_000)
	if w*h > 1_000_000 {
		t.Errorf("constrained to %dx%d, exceeds pixel budget", w, h)
	}
}

func TestGetImageDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dims.png")
	createTestImage(t, path, 123, 45, "png")

	dims, err := GetImageDimensions(path, filesystem.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("GetImageDimensions failed: %v", err)
	}
	if dims.Width != 123 || dims.Height != 45 {
		t.Errorf("dimensions = %+v, want 123x45", dims)
	}
}

func mustMkdir(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}
