package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// TesseractEngine runs Tesseract in-process through gosseract. A gosseract
// client is not safe for concurrent use, so the engine keeps a pool with one
// client per page worker.
type TesseractEngine struct {
	languages     []string
	size          int
	rasterizer    Rasterizer
	logger        *utils.Logger
	clientFactory func() *gosseract.Client

	once    sync.Once
	initErr error
	pool    chan *gosseract.Client
}

func NewTesseractEngine(languages []string, workers int, rasterizer Rasterizer, logger *utils.Logger) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if workers < 1 {
		workers = 1
	}
	return &TesseractEngine{
		languages:     languages,
		size:          workers,
		rasterizer:    rasterizer,
		logger:        logger.With("component", "ocr", "engine", "tesseract"),
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) SupportedLanguages() []string {
	return append([]string(nil), e.languages...)
}

// Initialize creates the client pool and runs one recognition on a blank
// image so missing language data surfaces at startup.
func (e *TesseractEngine) Initialize(ctx context.Context) error {
	e.once.Do(func() {
		pool := make(chan *gosseract.Client, e.size)
		for i := 0; i < e.size; i++ {
			c := e.clientFactory()
			if err := c.SetLanguage(e.languages...); err != nil {
				c.Close()
				e.closeAll(pool)
				e.initErr = fmt.Errorf("set languages %v: %w", e.languages, err)
				return
			}
			pool <- c
		}

		c := <-pool
		err := warmUp(c)
		pool <- c
		if err != nil {
			e.closeAll(pool)
			e.initErr = fmt.Errorf("tesseract warm-up: %w", err)
			return
		}

		e.pool = pool
		e.logger.Info("Tesseract engine initialized", "languages", e.languages, "clients", e.size)
	})
	return e.initErr
}

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
	if e.pool == nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, fmt.Errorf("engine not initialized"), "cannot recognize %s", imagePath)
	}
	if err := checkImage(imagePath); err != nil {
		return nil, "", err
	}

	var c *gosseract.Client
	select {
	case c = <-e.pool:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
	defer func() { e.pool <- c }()

	if err := c.SetImage(imagePath); err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "failed to load image %s", imagePath)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "tesseract failed on %s", imagePath)
	}

	structured := toRecognitions(boxes)
	raw := JoinRaw(structured)
	e.logger.Debug("Image recognized", "path", imagePath, "lines", len(structured), "chars", len(raw))
	return structured, raw, nil
}

func (e *TesseractEngine) ProcessPDF(ctx context.Context, pdfPath, outputDir string) ([]PageOCR, error) {
	return processPDF(ctx, e.rasterizer, e.Recognize, pdfPath, outputDir)
}

// Close releases every pooled client. It must not race with Recognize.
func (e *TesseractEngine) Close() error {
	if e.pool != nil {
		e.closeAll(e.pool)
		e.pool = nil
	}
	return nil
}

func (e *TesseractEngine) closeAll(pool chan *gosseract.Client) {
	for {
		select {
		case c := <-pool:
			c.Close()
		default:
			return
		}
	}
}

// toRecognitions keeps every detected line, including blank ones, in
// scan order.
func toRecognitions(boxes []gosseract.BoundingBox) []models.Recognition {
	structured := make([]models.Recognition, 0, len(boxes))
	for _, b := range boxes {
		structured = append(structured, models.Recognition{
			Text:        strings.TrimSpace(b.Word),
			Confidence:  b.Confidence / 100.0,
			Coordinates: rectToQuad(b.Box),
		})
	}
	return structured
}

func rectToQuad(r image.Rectangle) models.Quad {
	minX, minY := float64(r.Min.X), float64(r.Min.Y)
	maxX, maxY := float64(r.Max.X), float64(r.Max.Y)
	return models.Quad{
		{minX, minY},
		{maxX, minY},
		{maxX, maxY},
		{minX, maxY},
	}
}

func warmUp(c *gosseract.Client) error {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(color.White.Y >> 8)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return err
	}
	_, err := c.Text()
	return err
}
