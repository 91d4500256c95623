package converter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

const (
	thumbnailQuality = 80
	pageFilePrefix   = "page"
)

type PageMetadata struct {
	PageNumber  int    `json:"page_number"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	OriginalPDF string `json:"original_pdf,omitempty"`
}

// PageImage is one rasterized PDF page on local disk.
type PageImage struct {
	Path     string
	Metadata PageMetadata
}

type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

type Converter struct {
	dpi      int
	pdftoppm string
	timeout  time.Duration
	logger   *utils.Logger
}

func New(cfg *config.Config, logger *utils.Logger) *Converter {
	pdftoppm := cfg.PdftoppmPath
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	return &Converter{
		dpi:      cfg.PDFToImageDPI,
		pdftoppm: pdftoppm,
		timeout:  cfg.ConvertTimeout,
		logger:   logger.With("component", "converter"),
	}
}

// PDFToImages renders every page of pdfPath as a JPEG into outputDir, which
// must be private to the caller. Pages are numbered from 1 in document order.
func (c *Converter) PDFToImages(ctx context.Context, pdfPath, outputDir string) ([]PageImage, error) {
	c.logger.Info("Converting PDF to images", "path", pdfPath, "dpi", c.dpi)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(pdfPath, conf); err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "invalid PDF %s", filepath.Base(pdfPath))
	}

	pageCount, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to count pages of %s", filepath.Base(pdfPath))
	}
	if pageCount == 0 {
		return nil, utils.Wrap(utils.ErrConversion, errors.New("document has no pages"), "cannot convert %s", filepath.Base(pdfPath))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	root := filepath.Join(outputDir, pageFilePrefix)
	cmd := exec.CommandContext(ctx, c.pdftoppm, "-jpeg", "-r", strconv.Itoa(c.dpi), pdfPath, root)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, utils.Wrap(utils.ErrConversion, ctxErr, "rasterizing %s", filepath.Base(pdfPath))
		}
		return nil, utils.Wrap(utils.ErrConversion,
			fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))),
			"pdftoppm failed on %s", filepath.Base(pdfPath))
	}

	files, err := renderedPages(outputDir)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to collect rendered pages")
	}
	if len(files) != pageCount {
		return nil, utils.Wrap(utils.ErrConversion,
			fmt.Errorf("rendered %d of %d pages", len(files), pageCount),
			"incomplete conversion of %s", filepath.Base(pdfPath))
	}

	pages := make([]PageImage, 0, len(files))
	for i, f := range files {
		info, err := c.ImageInfo(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, PageImage{
			Path: f,
			Metadata: PageMetadata{
				PageNumber:  i + 1,
				Width:       info.Width,
				Height:      info.Height,
				Format:      info.Format,
				OriginalPDF: pdfPath,
			},
		})
	}

	c.logger.Info("PDF conversion complete", "path", pdfPath, "pages", len(pages))
	return pages, nil
}

// renderedPages returns pdftoppm's output files ordered by page number.
// pdftoppm zero-pads the number depending on the page count.
func renderedPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pageFilePrefix+"-*.jpg"))
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		path string
	}
	pages := make([]numbered, 0, len(matches))
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".jpg")
		n, err := strconv.Atoi(strings.TrimPrefix(base, pageFilePrefix+"-"))
		if err != nil {
			continue
		}
		pages = append(pages, numbered{n, m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

// OptimizeImage re-encodes an image as an RGB JPEG next to the source,
// optionally resized to targetSize, and returns the new path.
func (c *Converter) OptimizeImage(path string, targetSize *image.Point, quality int) (string, error) {
	src, err := decodeImage(path)
	if err != nil {
		return "", err
	}

	b := src.Bounds()
	size := b.Size()
	if targetSize != nil && targetSize.X > 0 && targetSize.Y > 0 {
		size = *targetSize
	}

	out := siblingPath(path, "_optimized.jpg")
	if err := writeJPEG(out, flatten(src, size), quality); err != nil {
		return "", err
	}

	c.logger.Debug("Image optimized", "path", out, "width", size.X, "height", size.Y)
	return out, nil
}

// Thumbnail writes a JPEG that fits within size, keeping the aspect ratio.
// Images smaller than size are not enlarged.
func (c *Converter) Thumbnail(path string, size image.Point) (string, error) {
	src, err := decodeImage(path)
	if err != nil {
		return "", err
	}

	out := siblingPath(path, "_thumb.jpg")
	if err := writeJPEG(out, flatten(src, fitWithin(src.Bounds().Size(), size)), thumbnailQuality); err != nil {
		return "", err
	}

	c.logger.Debug("Thumbnail created", "path", out)
	return out, nil
}

func (c *Converter) ImageInfo(path string) (*ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to open image %s", filepath.Base(path))
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to read image %s", filepath.Base(path))
	}
	return &ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: strings.ToUpper(format)}, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to open image %s", filepath.Base(path))
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to decode image %s", filepath.Base(path))
	}
	return img, nil
}

// flatten draws src onto a white RGBA canvas of the given size, which drops
// any alpha channel and scales when the sizes differ.
func flatten(src image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	if size == src.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}
	return dst
}

func fitWithin(src, bound image.Point) image.Point {
	if bound.X <= 0 || bound.Y <= 0 || (src.X <= bound.X && src.Y <= bound.Y) {
		return src
	}
	scale := min(float64(bound.X)/float64(src.X), float64(bound.Y)/float64(src.Y))
	return image.Point{
		X: max(1, int(float64(src.X)*scale+0.5)),
		Y: max(1, int(float64(src.Y)*scale+0.5)),
	}
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return utils.Wrap(utils.ErrConversion, err, "failed to create %s", filepath.Base(path))
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return utils.Wrap(utils.ErrConversion, err, "failed to encode %s", filepath.Base(path))
	}
	if err := f.Close(); err != nil {
		return utils.Wrap(utils.ErrConversion, err, "failed to write %s", filepath.Base(path))
	}
	return nil
}

func siblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix
}
