package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/converter"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// Engine recognizes text in page images. Implementations must be safe for
// concurrent use.
type Engine interface {
	Initialize(ctx context.Context) error

	// Recognize returns the recognized lines of an image in engine scan order
	// along with their newline joined text. An image without text is not an
	// error.
	Recognize(ctx context.Context, imagePath string) ([]models.Recognition, string, error)

	// ProcessPDF rasterizes a PDF into outputDir and recognizes every page.
	ProcessPDF(ctx context.Context, pdfPath, outputDir string) ([]PageOCR, error)

	SupportedLanguages() []string
	Name() string
}

// Rasterizer renders PDF pages to images. The converter satisfies it.
type Rasterizer interface {
	PDFToImages(ctx context.Context, pdfPath, outputDir string) ([]converter.PageImage, error)
}

// PageOCR is the recognition output of one rasterized PDF page.
type PageOCR struct {
	PageNumber int                  `json:"page"`
	ImagePath  string               `json:"image_path"`
	Structured []models.Recognition `json:"data"`
	Raw        string               `json:"raw"`
}

// New builds the engine selected by cfg.OCREngine and initializes it, so an
// engine that cannot start fails here rather than on the first upload.
func New(ctx context.Context, cfg *config.Config, rasterizer Rasterizer, logger *utils.Logger) (Engine, error) {
	var engine Engine

	switch strings.ToLower(cfg.OCREngine) {
	case "tesseract":
		engine = NewTesseractEngine(cfg.OCRLanguages, cfg.PageWorkers, rasterizer, logger)
	case "paddle":
		engine = NewPaddleEngine(cfg.OCRServiceURL, cfg.OCRLanguages, cfg.OCRTimeout, rasterizer, logger)
	default:
		return nil, fmt.Errorf("unknown OCR engine: %q", cfg.OCREngine)
	}

	logger.Info("Initializing OCR engine", "engine", engine.Name())
	if err := engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s OCR engine: %w", engine.Name(), err)
	}

	return engine, nil
}

// JoinRaw joins recognized lines into the raw page text.
func JoinRaw(structured []models.Recognition) string {
	lines := make([]string, len(structured))
	for i, r := range structured {
		lines[i] = r.Text
	}
	return strings.Join(lines, "\n")
}

// checkImage tells a bad input apart from an engine failure.
func checkImage(imagePath string) error {
	info, err := os.Stat(imagePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w: image file not found: %s", utils.ErrRecognition, utils.ErrValidation, imagePath)
	}
	if err != nil {
		return utils.Wrap(utils.ErrRecognition, err, "failed to stat image %s", imagePath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %w: image file is empty: %s", utils.ErrRecognition, utils.ErrValidation, imagePath)
	}
	return nil
}

type recognizeFunc func(ctx context.Context, imagePath string) ([]models.Recognition, string, error)

func processPDF(ctx context.Context, rasterizer Rasterizer, recognize recognizeFunc, pdfPath, outputDir string) ([]PageOCR, error) {
	if rasterizer == nil {
		return nil, utils.Wrap(utils.ErrConversion, errors.New("no rasterizer configured"), "cannot process %s", pdfPath)
	}

	pages, err := rasterizer.PDFToImages(ctx, pdfPath, outputDir)
	if err != nil {
		return nil, err
	}

	results := make([]PageOCR, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		structured, raw, err := recognize(ctx, page.Path)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Metadata.PageNumber, err)
		}
		results = append(results, PageOCR{
			PageNumber: page.Metadata.PageNumber,
			ImagePath:  page.Path,
			Structured: structured,
			Raw:        raw,
		})
	}
	return results, nil
}
