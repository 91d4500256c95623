package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BerylCAtieno/forensic-docs-api/internal/models"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

var paddleLanguages = []string{"ch", "en", "fr", "german", "korean", "japan"}

// PaddleEngine calls a PaddleOCR sidecar over HTTP. The sidecar accepts a
// multipart image on POST /ocr and answers with
// {"result": [[coordinates, [text, confidence]], ...]}.
type PaddleEngine struct {
	baseURL    string
	lang       string
	httpClient *http.Client
	rasterizer Rasterizer
	logger     *utils.Logger
}

type paddleResponse struct {
	Result []models.Recognition `json:"result"`
	Error  string               `json:"error,omitempty"`
}

func NewPaddleEngine(baseURL string, languages []string, timeout time.Duration, rasterizer Rasterizer, logger *utils.Logger) *PaddleEngine {
	lang := "en"
	if len(languages) > 0 {
		lang = languages[0]
	}
	return &PaddleEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		lang:       lang,
		httpClient: &http.Client{Timeout: timeout},
		rasterizer: rasterizer,
		logger:     logger.With("component", "ocr", "engine", "paddle"),
	}
}

func (e *PaddleEngine) Name() string { return "paddle" }

func (e *PaddleEngine) SupportedLanguages() []string {
	return append([]string(nil), paddleLanguages...)
}

func (e *PaddleEngine) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("OCR service unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCR service health check returned status %d", resp.StatusCode)
	}

	e.logger.Info("PaddleOCR service is healthy", "url", e.baseURL, "lang", e.lang)
	return nil
}

func (e *PaddleEngine) Recognize(ctx context.Context, imagePath string) ([]models.Recognition, string, error) {
	if err := checkImage(imagePath); err != nil {
		return nil, "", err
	}

	body, contentType, err := e.buildRequestBody(imagePath)
	if err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "failed to prepare request for %s", imagePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/ocr", body)
	if err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "OCR request failed for %s", imagePath)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "failed to read OCR response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", utils.Wrap(utils.ErrRecognition,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			"OCR service error for %s", imagePath)
	}

	var result paddleResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, "", utils.Wrap(utils.ErrRecognition, err, "failed to parse OCR response")
	}
	if result.Error != "" {
		return nil, "", utils.Wrap(utils.ErrRecognition, fmt.Errorf("%s", result.Error), "OCR service error for %s", imagePath)
	}

	structured := result.Result
	if structured == nil {
		structured = []models.Recognition{}
	}
	raw := JoinRaw(structured)
	e.logger.Debug("Image recognized", "path", imagePath, "lines", len(structured), "chars", len(raw))
	return structured, raw, nil
}

func (e *PaddleEngine) ProcessPDF(ctx context.Context, pdfPath, outputDir string) ([]PageOCR, error) {
	return processPDF(ctx, e.rasterizer, e.Recognize, pdfPath, outputDir)
}

func (e *PaddleEngine) buildRequestBody(imagePath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("lang", e.lang); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
