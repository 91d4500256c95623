package converter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/testutil"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

func newTestConverter() *Converter {
	return New(&config.Config{
		PDFToImageDPI:  72,
		ConvertTimeout: time.Minute,
	}, utils.NewLoggerWithWriter("error", io.Discard))
}

func decodeJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	return img
}

func TestOptimizeImageFlattensAlpha(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	src.Set(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	path := testutil.WriteFile(t, dir, "scan.png", testutil.PNG(t, src))

	out, err := newTestConverter().OptimizeImage(path, nil, 85)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if filepath.Ext(out) != ".jpg" {
		t.Errorf("expected .jpg output, got %s", out)
	}

	img := decodeJPEG(t, out)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Errorf("size changed without a target: %v", img.Bounds())
	}
	r, g, b, _ := img.At(40, 20).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("transparent area should flatten to white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestOptimizeImageResizes(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "scan.png", testutil.PNG(t, testutil.TextImage(300, 200, "hello")))

	out, err := newTestConverter().OptimizeImage(path, &image.Point{X: 150, Y: 100}, 85)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if b := decodeJPEG(t, out).Bounds(); b.Dx() != 150 || b.Dy() != 100 {
		t.Errorf("expected 150x100, got %v", b)
	}
}

func TestThumbnailFitsWithinAndNeverUpscales(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		wantW int
		wantH int
	}{
		{"landscape", 1000, 500, 200, 100},
		{"portrait", 300, 600, 100, 200},
		{"small", 50, 40, 50, 40},
	}

	c := newTestConverter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := testutil.WriteFile(t, dir, "page.png", testutil.PNG(t, testutil.TextImage(tt.w, tt.h)))

			out, err := c.Thumbnail(path, image.Point{X: 200, Y: 200})
			if err != nil {
				t.Fatalf("thumbnail: %v", err)
			}
			b := decodeJPEG(t, out).Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestCorruptImageIsConversionFailure(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "broken.png", []byte("not an image"))

	_, err := newTestConverter().OptimizeImage(path, nil, 85)
	if !errors.Is(err, utils.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
}

func TestImageInfo(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "page.png", testutil.PNG(t, testutil.TextImage(120, 80)))

	info, err := newTestConverter().ImageInfo(path)
	if err != nil {
		t.Fatalf("image info: %v", err)
	}
	if info.Width != 120 || info.Height != 80 || info.Format != "PNG" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestPDFToImagesRejectsCorruptPDF(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "broken.pdf", []byte("%PDF-1.4\nthis is not a pdf"))

	_, err := newTestConverter().PDFToImages(context.Background(), path, t.TempDir())
	if !errors.Is(err, utils.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
}

func TestPDFToImages(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}

	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "three.pdf", testutil.MinimalPDF(3))
	out := t.TempDir()

	pages, err := newTestConverter().PDFToImages(context.Background(), path, out)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Metadata.PageNumber != i+1 {
			t.Errorf("page %d numbered %d", i, p.Metadata.PageNumber)
		}
		if p.Metadata.Format != "JPEG" || p.Metadata.Width == 0 {
			t.Errorf("unexpected metadata: %+v", p.Metadata)
		}
		if filepath.Dir(p.Path) != out {
			t.Errorf("page written outside output dir: %s", p.Path)
		}
	}
}

func TestRenderedPagesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.jpg", "page-02.jpg", "page-01.jpg", "page-9.jpg", "other.jpg"} {
		testutil.WriteFile(t, dir, name, []byte("x"))
	}

	files, err := renderedPages(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range files {
		got = append(got, filepath.Base(f))
	}
	want := []string{"page-01.jpg", "page-02.jpg", "page-9.jpg", "page-10.jpg"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPDFInfo(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "two.pdf", testutil.MinimalPDF(2))

	info, err := newTestConverter().PDFInfo(path)
	if err != nil {
		t.Fatalf("pdf info: %v", err)
	}
	if info.PageCount != 2 {
		t.Errorf("expected 2 pages, got %d", info.PageCount)
	}
	if got := info.Metadata()["pdf_page_count"]; got != 2 {
		t.Errorf("unexpected metadata page count %v", got)
	}
}
