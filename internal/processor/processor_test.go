package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/converter"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/ocr"
	"github.com/BerylCAtieno/forensic-docs-api/internal/storage"
	"github.com/BerylCAtieno/forensic-docs-api/internal/testutil"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

type fakeEngine struct {
	recognizeFn func(ctx context.Context, imagePath string) ([]models.Recognition, string, error)
}

func (f *fakeEngine) Initialize(ctx context.Context) error { return nil }

func (f *fakeEngine) Recognize(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
	return f.recognizeFn(ctx, imagePath)
}

func (f *fakeEngine) ProcessPDF(ctx context.Context, pdfPath, outputDir string) ([]ocr.PageOCR, error) {
	return nil, errors.New("not used")
}

func (f *fakeEngine) SupportedLanguages() []string { return []string{"eng"} }
func (f *fakeEngine) Name() string                 { return "fake" }

// fakeConverter uses the real image operations and replaces rasterization
// when pdfToImagesFn is set.
type fakeConverter struct {
	*converter.Converter
	pdfToImagesFn func(ctx context.Context, pdfPath, outputDir string) ([]converter.PageImage, error)
}

func (f *fakeConverter) PDFToImages(ctx context.Context, pdfPath, outputDir string) ([]converter.PageImage, error) {
	if f.pdfToImagesFn != nil {
		return f.pdfToImagesFn(ctx, pdfPath, outputDir)
	}
	return f.Converter.PDFToImages(ctx, pdfPath, outputDir)
}

func lineEngine() *fakeEngine {
	return &fakeEngine{
		recognizeFn: func(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
			structured := []models.Recognition{
				{Text: "Name: Jane Doe", Confidence: 0.97, Coordinates: models.Quad{{0, 0}, {100, 0}, {100, 20}, {0, 20}}},
				{Text: "DOB: 1980-02-03", Confidence: 0.88, Coordinates: models.Quad{{0, 30}, {100, 30}, {100, 50}, {0, 50}}},
			}
			return structured, ocr.JoinRaw(structured), nil
		},
	}
}

// pageRasterizer writes one JPEG per page the way pdftoppm would.
func pageRasterizer(t *testing.T, pages int) func(ctx context.Context, pdfPath, outputDir string) ([]converter.PageImage, error) {
	return func(ctx context.Context, pdfPath, outputDir string) ([]converter.PageImage, error) {
		var out []converter.PageImage
		for i := 1; i <= pages; i++ {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, testutil.TextImage(200, 260, fmt.Sprintf("Page %d", i)), nil); err != nil {
				t.Fatal(err)
			}
			p := testutil.WriteFile(t, outputDir, fmt.Sprintf("page-%d.jpg", i), buf.Bytes())
			out = append(out, converter.PageImage{
				Path:     p,
				Metadata: converter.PageMetadata{PageNumber: i, Width: 200, Height: 260, Format: "JPEG", OriginalPDF: pdfPath},
			})
		}
		return out, nil
	}
}

type harness struct {
	proc  *Processor
	store storage.Provider
	conv  *fakeConverter
}

func newHarness(t *testing.T, engine ocr.Engine) *harness {
	t.Helper()
	logger := utils.NewLoggerWithWriter("error", io.Discard)
	cfg := &config.Config{
		TempDir:       t.TempDir(),
		PageWorkers:   3,
		ImageQuality:  85,
		ThumbnailSize: 64,
		PDFToImageDPI: 72,
		PresignTTL:    time.Hour,
	}

	store := storage.NewLocalStorage(t.TempDir(), logger)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	conv := &fakeConverter{Converter: converter.New(cfg, logger)}

	proc, err := New(cfg, store, engine, conv, logger)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return &harness{proc: proc, store: store, conv: conv}
}

func (h *harness) list(t *testing.T, prefix string) []string {
	t.Helper()
	objects, err := h.store.List(context.Background(), prefix)
	if err != nil {
		t.Fatalf("list %s: %v", prefix, err)
	}
	return objects
}

func TestProcessImageYieldsOnePage(t *testing.T) {
	h := newHarness(t, lineEngine())
	upload := testutil.PNG(t, testutil.TextImage(320, 200, "Name: Jane Doe"))

	res, err := h.proc.ProcessDocument(context.Background(), bytes.NewReader(upload), "Scan.PNG", "T1", "C1", nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if res.DocumentType != models.DocumentTypeImage {
		t.Errorf("expected image type, got %s", res.DocumentType)
	}
	if !res.ProcessingComplete {
		t.Errorf("expected processing_complete")
	}
	if len(res.Pages) != 1 || res.Pages[0].PageNumber != 1 {
		t.Fatalf("expected exactly page 1, got %+v", res.Pages)
	}

	base := "tenants/T1/cases/C1/documents/" + res.DocumentID
	if res.OriginalPath != base+"/original.png" {
		t.Errorf("unexpected original path %s", res.OriginalPath)
	}
	page := res.Pages[0]
	if page.ImagePath != base+"/pages/1/page.jpg" ||
		page.ThumbnailPath != base+"/pages/1/thumbnail.jpg" ||
		page.TextPath != base+"/pages/1/ocr.txt" {
		t.Errorf("unexpected page paths: %+v", page)
	}
	if page.OCRData.Raw != ocr.JoinRaw(page.OCRData.Structured) {
		t.Errorf("raw text must equal joined structured text")
	}

	want := []string{
		base + "/original.png",
		base + "/pages/1/ocr.txt",
		base + "/pages/1/page.jpg",
		base + "/pages/1/thumbnail.jpg",
	}
	if got := h.list(t, base); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected artifacts:\n got %v\nwant %v", got, want)
	}

	rc, err := h.store.Get(context.Background(), res.OriginalPath)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	stored, _ := io.ReadAll(rc)
	if !bytes.Equal(stored, upload) {
		t.Errorf("original must be stored byte-identical")
	}
}

func TestProcessPDFKeepsPageOrder(t *testing.T) {
	var calls atomic.Int32
	engine := &fakeEngine{
		recognizeFn: func(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
			calls.Add(1)
			// Earlier pages finish last.
			if strings.Contains(imagePath, "page-1") {
				time.Sleep(30 * time.Millisecond)
			}
			text := filepath.Base(imagePath)
			return []models.Recognition{{Text: text, Confidence: 1}}, text, nil
		},
	}
	h := newHarness(t, engine)
	h.conv.pdfToImagesFn = pageRasterizer(t, 3)

	res, err := h.proc.ProcessDocument(context.Background(), bytes.NewReader(testutil.MinimalPDF(3)), "records.pdf", "T1", "C1", map[string]any{"description": "intake"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.DocumentType != models.DocumentTypePDF {
		t.Errorf("expected pdf type, got %s", res.DocumentType)
	}
	if len(res.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(res.Pages))
	}
	for i, page := range res.Pages {
		n := i + 1
		if page.PageNumber != n {
			t.Errorf("position %d has page %d", i, page.PageNumber)
		}
		if page.OCRData.Raw != fmt.Sprintf("page-%d.jpg", n) {
			t.Errorf("page %d carries text of another page: %q", n, page.OCRData.Raw)
		}
		if page.ImagePath != fmt.Sprintf("%s/pages/%d/page.jpg", res.BasePath, n) {
			t.Errorf("unexpected image path %s", page.ImagePath)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 recognitions, got %d", calls.Load())
	}
	if res.Metadata["description"] != "intake" {
		t.Errorf("caller metadata not kept: %v", res.Metadata)
	}
	if res.RawText() != "page-1.jpg\npage-2.jpg\npage-3.jpg" {
		t.Errorf("unexpected document text %q", res.RawText())
	}
}

func TestCorruptPDFLeavesNoPages(t *testing.T) {
	h := newHarness(t, lineEngine())

	_, err := h.proc.ProcessDocument(context.Background(), strings.NewReader("%PDF-1.4 garbage"), "broken.pdf", "T1", "C1", nil)
	if !errors.Is(err, utils.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	var stageErr *utils.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageConvert {
		t.Errorf("expected convert stage error, got %v", err)
	}
	if left := h.list(t, "tenants/T1"); len(left) != 0 {
		t.Errorf("expected no artifacts, found %v", left)
	}
}

func TestOCRFailureCleansUp(t *testing.T) {
	engine := &fakeEngine{
		recognizeFn: func(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
			if strings.Contains(imagePath, "page-2") {
				return nil, "", utils.Wrap(utils.ErrRecognition, errors.New("engine crashed"), "recognize %s", imagePath)
			}
			return nil, "", nil
		},
	}
	h := newHarness(t, engine)
	h.conv.pdfToImagesFn = pageRasterizer(t, 3)

	_, err := h.proc.ProcessDocument(context.Background(), bytes.NewReader(testutil.MinimalPDF(3)), "records.pdf", "T1", "C1", nil)
	if !errors.Is(err, utils.ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
	var stageErr *utils.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageOCR || stageErr.Page != 2 {
		t.Errorf("expected ocr stage error on page 2, got %v", err)
	}
	if left := h.list(t, "tenants/T1"); len(left) != 0 {
		t.Errorf("expected cleanup of every artifact, found %v", left)
	}
}

func TestCancelledProcessingCleansUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &fakeEngine{
		recognizeFn: func(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
			if strings.Contains(imagePath, "page-2") {
				cancel()
				return nil, "", ctx.Err()
			}
			return nil, "", nil
		},
	}
	h := newHarness(t, engine)
	h.conv.pdfToImagesFn = pageRasterizer(t, 3)

	_, err := h.proc.ProcessDocument(ctx, bytes.NewReader(testutil.MinimalPDF(3)), "records.pdf", "T1", "C1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if left := h.list(t, "tenants/T1"); len(left) != 0 {
		t.Errorf("expected cleanup of every artifact, found %v", left)
	}
}

func TestUnsupportedFileType(t *testing.T) {
	h := newHarness(t, lineEngine())

	_, err := h.proc.ProcessDocument(context.Background(), strings.NewReader("PK"), "notes.docx", "T1", "C1", nil)
	if !errors.Is(err, utils.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	if left := h.list(t, ""); len(left) != 0 {
		t.Errorf("nothing should be stored, found %v", left)
	}
}

func TestEmptyOCRResultIsNotAnError(t *testing.T) {
	engine := &fakeEngine{
		recognizeFn: func(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
			return nil, "", nil
		},
	}
	h := newHarness(t, engine)

	res, err := h.proc.ProcessDocument(context.Background(), bytes.NewReader(testutil.PNG(t, testutil.TextImage(50, 50))), "blank.png", "T1", "C1", nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Pages[0].OCRData.Raw != "" || len(res.Pages[0].OCRData.Structured) != 0 {
		t.Errorf("expected empty OCR data, got %+v", res.Pages[0].OCRData)
	}
}

func TestRejectsPathLikeIdentifiers(t *testing.T) {
	h := newHarness(t, lineEngine())

	for _, tenant := range []string{"", "..", "a/b"} {
		_, err := h.proc.ProcessDocument(context.Background(), strings.NewReader("x"), "a.png", tenant, "C1", nil)
		if !errors.Is(err, utils.ErrValidation) {
			t.Errorf("tenant %q: expected ErrValidation, got %v", tenant, err)
		}
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t, lineEngine())
	h.conv.pdfToImagesFn = pageRasterizer(t, 3)
	ctx := context.Background()

	res, err := h.proc.ProcessDocument(ctx, bytes.NewReader(testutil.MinimalPDF(3)), "records.pdf", "T1", "C1", nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	first, err := h.proc.GetDocumentPreview(ctx, res.DocumentID, "T1", "C1", 2)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if first.PageCount != 3 || first.Page != 2 {
		t.Errorf("unexpected preview: %+v", first)
	}
	if first.ImageURL != "/api/files/"+res.BasePath+"/pages/2/page.jpg" {
		t.Errorf("unexpected image url %s", first.ImageURL)
	}
	if first.ThumbnailURL == "" {
		t.Errorf("expected thumbnail url")
	}
	if first.OCRText != "Name: Jane Doe\nDOB: 1980-02-03" {
		t.Errorf("unexpected OCR text %q", first.OCRText)
	}

	second, err := h.proc.GetDocumentPreview(ctx, res.DocumentID, "T1", "C1", 2)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if *first != *second {
		t.Errorf("preview must be idempotent:\n%+v\n%+v", first, second)
	}

	if _, err := h.proc.GetDocumentPreview(ctx, res.DocumentID, "T1", "C1", 4); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing page, got %v", err)
	}
	if _, err := h.proc.GetDocumentPreview(ctx, "unknown", "T1", "C1", 1); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown document, got %v", err)
	}
}

func TestDeleteDocumentArtifacts(t *testing.T) {
	h := newHarness(t, lineEngine())
	ctx := context.Background()

	res, err := h.proc.ProcessDocument(ctx, bytes.NewReader(testutil.PNG(t, testutil.TextImage(60, 60))), "a.png", "T1", "C1", nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	deleted, err := h.proc.DeleteDocumentArtifacts(ctx, "T1", "C1", res.DocumentID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 4 {
		t.Errorf("expected 4 deleted objects, got %d", deleted)
	}
	if left := h.list(t, res.BasePath); len(left) != 0 {
		t.Errorf("expected no artifacts, found %v", left)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	logger := utils.NewLoggerWithWriter("error", io.Discard)
	cfg := &config.Config{TempDir: t.TempDir()}
	store := storage.NewLocalStorage(t.TempDir(), logger)
	conv := converter.New(cfg, logger)

	if _, err := New(cfg, store, nil, conv, logger); err == nil {
		t.Error("expected error without OCR engine")
	}
	if _, err := New(cfg, nil, lineEngine(), conv, logger); err == nil {
		t.Error("expected error without storage")
	}
	if _, err := New(cfg, store, lineEngine(), nil, logger); err == nil {
		t.Error("expected error without converter")
	}
}

func TestTempFilesAreRemoved(t *testing.T) {
	h := newHarness(t, lineEngine())

	if _, err := h.proc.ProcessDocument(context.Background(), bytes.NewReader(testutil.PNG(t, testutil.TextImage(60, 60))), "a.png", "T1", "C1", nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	entries, err := os.ReadDir(h.proc.tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty temp dir, found %d entries", len(entries))
	}
}

func TestClassifyFile(t *testing.T) {
	tests := map[string]models.DocumentType{
		"a.pdf":  models.DocumentTypePDF,
		"b.JPEG": models.DocumentTypeImage,
		"c.tif":  models.DocumentTypeImage,
		"d.bmp":  models.DocumentTypeImage,
	}
	for name, want := range tests {
		got, _, err := ClassifyFile(name)
		if err != nil || got != want {
			t.Errorf("ClassifyFile(%s) = %s, %v; want %s", name, got, err, want)
		}
	}
	if _, ext, _ := ClassifyFile("SCAN.PDF"); ext != ".pdf" {
		t.Errorf("expected lower-cased extension, got %q", ext)
	}
	if _, _, err := ClassifyFile("e.gif"); !errors.Is(err, utils.ErrUnsupportedFileType) {
		t.Errorf("expected gif to be unsupported, got %v", err)
	}
}
