package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/forensic-docs-api/internal/config"
	"github.com/BerylCAtieno/forensic-docs-api/internal/converter"
	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/ocr"
	"github.com/BerylCAtieno/forensic-docs-api/internal/storage"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// Pipeline stages reported in StageError.
const (
	StageClassify        = "classify"
	StageSpool           = "spool"
	StageStoreOriginal   = "store_original"
	StageConvert         = "convert"
	StageOptimize        = "optimize"
	StageStorePageImage  = "store_page_image"
	StageThumbnail       = "thumbnail"
	StageStoreThumbnail  = "store_thumbnail"
	StageOCR             = "ocr"
	StageStoreText       = "store_text"
	StagePreview         = "preview"
	StageDeleteArtifacts = "delete_artifacts"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// Converter is the subset of the document converter the pipeline drives.
type Converter interface {
	PDFToImages(ctx context.Context, pdfPath, outputDir string) ([]converter.PageImage, error)
	OptimizeImage(path string, targetSize *image.Point, quality int) (string, error)
	Thumbnail(path string, size image.Point) (string, error)
	ImageInfo(path string) (*converter.ImageInfo, error)
	PDFInfo(path string) (*converter.PDFInfo, error)
}

// Processor turns an uploaded file into stored page artifacts and OCR text.
type Processor struct {
	storage       storage.Provider
	engine        ocr.Engine
	converter     Converter
	tempDir       string
	workers       int
	quality       int
	thumbnailSize image.Point
	presignTTL    time.Duration
	logger        *utils.Logger
}

func New(cfg *config.Config, store storage.Provider, engine ocr.Engine, conv Converter, logger *utils.Logger) (*Processor, error) {
	switch {
	case store == nil:
		return nil, errors.New("processor: storage provider is required")
	case engine == nil:
		return nil, errors.New("processor: OCR engine is required")
	case conv == nil:
		return nil, errors.New("processor: converter is required")
	case logger == nil:
		return nil, errors.New("processor: logger is required")
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("processor: failed to create temp dir: %w", err)
	}

	return &Processor{
		storage:       store,
		engine:        engine,
		converter:     conv,
		tempDir:       tempDir,
		workers:       max(1, cfg.PageWorkers),
		quality:       cfg.ImageQuality,
		thumbnailSize: image.Point{X: cfg.ThumbnailSize, Y: cfg.ThumbnailSize},
		presignTTL:    cfg.PresignTTL,
		logger:        logger.With("component", "processor"),
	}, nil
}

// ClassifyFile maps a filename to a document type by extension.
func ClassifyFile(filename string) (models.DocumentType, string, error) {
	ext := utils.FileExtension(filename)
	switch {
	case ext == ".pdf":
		return models.DocumentTypePDF, ext, nil
	case imageExtensions[ext]:
		return models.DocumentTypeImage, ext, nil
	default:
		return "", ext, fmt.Errorf("%w: %q", utils.ErrUnsupportedFileType, ext)
	}
}

// ProcessDocument stores the original upload, renders and stores every page,
// runs OCR on each page and returns the aggregated result. On any failure
// nothing is left behind under the document's base path.
func (p *Processor) ProcessDocument(ctx context.Context, file io.Reader, filename, tenantID, caseID string, metadata map[string]any) (*models.ProcessingResult, error) {
	start := time.Now()

	if err := validateSegment("tenant_id", tenantID); err != nil {
		return nil, err
	}
	if err := validateSegment("case_id", caseID); err != nil {
		return nil, err
	}

	docType, ext, err := ClassifyFile(filename)
	if err != nil {
		return nil, &utils.StageError{Kind: utils.ErrUnsupportedFileType, Stage: StageClassify, Err: err}
	}

	documentID := utils.GenerateID()
	base := DocumentBasePath(tenantID, caseID, documentID)
	logger := p.logger.With("document_id", documentID, "tenant_id", tenantID, "case_id", caseID)
	logger.Info("Processing document", "filename", filename, "type", docType)

	workDir, err := os.MkdirTemp(p.tempDir, "doc-")
	if err != nil {
		return nil, &utils.StageError{Kind: utils.ErrStorage, Stage: StageSpool, Err: err}
	}
	defer os.RemoveAll(workDir)

	succeeded := false
	defer func() {
		if !succeeded {
			p.cleanup(context.WithoutCancel(ctx), base, logger)
		}
	}()

	local := filepath.Join(workDir, originalName+ext)
	if err := spool(file, local); err != nil {
		return nil, &utils.StageError{Kind: utils.ErrStorage, Stage: StageSpool, Path: local, Err: err}
	}

	originalPath := OriginalPath(base, ext)
	if err := p.storeFile(ctx, local, originalPath, ""); err != nil {
		return nil, stageError(StageStoreOriginal, 0, originalPath, utils.ErrStorage, err)
	}

	docMeta := make(map[string]any, len(metadata)+4)
	for k, v := range metadata {
		docMeta[k] = v
	}

	if err := os.MkdirAll(filepath.Join(workDir, pagesDir), 0o755); err != nil {
		return nil, &utils.StageError{Kind: utils.ErrStorage, Stage: StageSpool, Err: err}
	}

	var pages []converter.PageImage
	switch docType {
	case models.DocumentTypePDF:
		pages, err = p.converter.PDFToImages(ctx, local, filepath.Join(workDir, pagesDir))
		if err != nil {
			return nil, stageError(StageConvert, 0, filename, utils.ErrConversion, err)
		}
		if info, err := p.converter.PDFInfo(local); err != nil {
			logger.Warn("Could not read PDF info", "error", err)
		} else {
			for k, v := range info.Metadata() {
				docMeta[k] = v
			}
		}
	default:
		info, err := p.converter.ImageInfo(local)
		if err != nil {
			return nil, stageError(StageConvert, 1, filename, utils.ErrConversion, err)
		}
		pages = []converter.PageImage{{
			Path: local,
			Metadata: converter.PageMetadata{
				PageNumber: 1,
				Width:      info.Width,
				Height:     info.Height,
				Format:     info.Format,
			},
		}}
	}

	results := make([]models.PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, page := range pages {
		g.Go(func() error {
			res, err := p.processPage(gctx, base, docType, page)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Document processing failed", "error", err)
		return nil, err
	}

	docMeta["page_count"] = len(results)
	docMeta["original_filename"] = filename

	result := &models.ProcessingResult{
		DocumentID:         documentID,
		TenantID:           tenantID,
		CaseID:             caseID,
		Filename:           filename,
		OriginalPath:       originalPath,
		BasePath:           base,
		DocumentType:       docType,
		Pages:              results,
		Metadata:           docMeta,
		ProcessingComplete: true,
		ProcessingTime:     time.Since(start),
		Timestamp:          time.Now().UTC(),
	}
	succeeded = true

	logger.Info("Document processed", "pages", len(results), "duration", result.ProcessingTime.String())
	return result, nil
}

func (p *Processor) processPage(ctx context.Context, base string, docType models.DocumentType, page converter.PageImage) (*models.PageResult, error) {
	n := page.Metadata.PageNumber
	imagePath := page.Path

	if docType == models.DocumentTypeImage {
		optimized, err := p.converter.OptimizeImage(imagePath, nil, p.quality)
		if err != nil {
			return nil, stageError(StageOptimize, n, imagePath, utils.ErrConversion, err)
		}
		imagePath = optimized
	}

	storedImage := PagePath(base, n, pageImageName)
	if err := p.storeFile(ctx, imagePath, storedImage, "image/jpeg"); err != nil {
		return nil, stageError(StageStorePageImage, n, storedImage, utils.ErrStorage, err)
	}

	thumb, err := p.converter.Thumbnail(imagePath, p.thumbnailSize)
	if err != nil {
		return nil, stageError(StageThumbnail, n, imagePath, utils.ErrConversion, err)
	}
	storedThumb := PagePath(base, n, thumbnailName)
	if err := p.storeFile(ctx, thumb, storedThumb, "image/jpeg"); err != nil {
		return nil, stageError(StageStoreThumbnail, n, storedThumb, utils.ErrStorage, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stageError(StageOCR, n, imagePath, nil, err)
	}
	structured, raw, err := p.engine.Recognize(ctx, imagePath)
	if err != nil {
		return nil, stageError(StageOCR, n, imagePath, utils.ErrRecognition, err)
	}
	if structured == nil {
		structured = []models.Recognition{}
	}

	storedText := PagePath(base, n, ocrTextName)
	if _, err := p.storage.Save(ctx, strings.NewReader(raw), storedText, "text/plain; charset=utf-8"); err != nil {
		return nil, stageError(StageStoreText, n, storedText, utils.ErrStorage, err)
	}

	meta := map[string]any{
		"width":  page.Metadata.Width,
		"height": page.Metadata.Height,
		"format": page.Metadata.Format,
	}
	if page.Metadata.OriginalPDF != "" {
		meta["source"] = "pdf"
	}

	p.logger.Debug("Page processed", "page", n, "lines", len(structured), "base_path", base)
	return &models.PageResult{
		PageNumber:    n,
		ImagePath:     storedImage,
		ThumbnailPath: storedThumb,
		TextPath:      storedText,
		OCRData:       models.OCRData{Structured: structured, Raw: raw},
		Metadata:      meta,
	}, nil
}

// GetDocumentPreview returns URLs and OCR text for one stored page.
func (p *Processor) GetDocumentPreview(ctx context.Context, documentID, tenantID, caseID string, page int) (*models.Preview, error) {
	for name, v := range map[string]string{"document_id": documentID, "tenant_id": tenantID, "case_id": caseID} {
		if err := validateSegment(name, v); err != nil {
			return nil, err
		}
	}
	if page < 1 {
		return nil, utils.Wrap(utils.ErrValidation, fmt.Errorf("page %d", page), "page numbers start at 1")
	}

	base := DocumentBasePath(tenantID, caseID, documentID)
	objects, err := p.storage.List(ctx, PagesPrefix(base))
	if err != nil {
		return nil, stageError(StagePreview, page, base, utils.ErrStorage, err)
	}

	present := make(map[string]bool)
	for _, obj := range objects {
		if n, ok := pageNumberOf(base, obj); ok && n == page {
			present[obj] = true
		}
	}
	if len(present) == 0 {
		return nil, utils.Wrap(utils.ErrNotFound, fmt.Errorf("no artifacts for page %d", page), "preview of document %s", documentID)
	}

	preview := &models.Preview{
		DocumentID: documentID,
		TenantID:   tenantID,
		CaseID:     caseID,
		Page:       page,
		PageCount:  len(pageNumbers(base, objects)),
	}

	if imagePath := PagePath(base, page, pageImageName); present[imagePath] {
		if preview.ImageURL, err = p.storage.PresignedURL(ctx, imagePath, p.presignTTL); err != nil {
			return nil, stageError(StagePreview, page, imagePath, utils.ErrStorage, err)
		}
	}
	if thumbPath := PagePath(base, page, thumbnailName); present[thumbPath] {
		if preview.ThumbnailURL, err = p.storage.PresignedURL(ctx, thumbPath, p.presignTTL); err != nil {
			return nil, stageError(StagePreview, page, thumbPath, utils.ErrStorage, err)
		}
	}
	if textPath := PagePath(base, page, ocrTextName); present[textPath] {
		text, err := p.readText(ctx, textPath)
		if err != nil {
			return nil, stageError(StagePreview, page, textPath, utils.ErrStorage, err)
		}
		preview.OCRText = text
	}

	return preview, nil
}

// DeleteDocumentArtifacts removes every stored object of a document and
// returns how many were deleted.
func (p *Processor) DeleteDocumentArtifacts(ctx context.Context, tenantID, caseID, documentID string) (int, error) {
	for name, v := range map[string]string{"document_id": documentID, "tenant_id": tenantID, "case_id": caseID} {
		if err := validateSegment(name, v); err != nil {
			return 0, err
		}
	}
	base := DocumentBasePath(tenantID, caseID, documentID)
	deleted, err := p.deleteAll(ctx, base)
	if err != nil {
		return deleted, &utils.StageError{Kind: utils.ErrStorage, Stage: StageDeleteArtifacts, Path: base, Err: err}
	}
	return deleted, nil
}

// PagesPrefix is the storage prefix holding every page of a document.
func PagesPrefix(base string) string {
	return base + "/" + pagesDir
}

func (p *Processor) cleanup(ctx context.Context, base string, logger *utils.Logger) {
	deleted, err := p.deleteAll(ctx, base)
	if err != nil {
		logger.Error("Cleanup after failed processing was incomplete", "base_path", base, "deleted", deleted, "error", err)
		return
	}
	logger.Info("Cleaned up partial artifacts", "base_path", base, "deleted", deleted)
}

func (p *Processor) deleteAll(ctx context.Context, base string) (int, error) {
	objects, err := p.storage.List(ctx, base)
	if err != nil {
		return 0, err
	}

	deleted := 0
	var errs []error
	for _, obj := range objects {
		ok, err := p.storage.Delete(ctx, obj)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, errors.Join(errs...)
}

func (p *Processor) storeFile(ctx context.Context, localPath, storagePath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = p.storage.Save(ctx, f, storagePath, contentType)
	return err
}

func (p *Processor) readText(ctx context.Context, storagePath string) (string, error) {
	rc, err := p.storage.Get(ctx, storagePath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func spool(r io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// stageError attaches stage context. The kind already carried by err wins;
// cancellation carries no kind.
func stageError(stage string, page int, path string, fallback, err error) error {
	kind := utils.KindOf(err)
	if kind == nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		kind = fallback
	}
	return &utils.StageError{Kind: kind, Stage: stage, Page: page, Path: path, Err: err}
}

// pageNumbers returns the sorted distinct page numbers present under base.
func pageNumbers(base string, objects []string) []int {
	seen := make(map[int]bool)
	for _, obj := range objects {
		if n, ok := pageNumberOf(base, obj); ok {
			seen[n] = true
		}
	}
	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
