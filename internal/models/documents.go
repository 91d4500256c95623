package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentTypePDF   DocumentType = "pdf"
	DocumentTypeImage DocumentType = "image"
)

type OCRStatus string

const (
	OCRStatusProcessing OCRStatus = "processing"
	OCRStatusComplete   OCRStatus = "complete"
	OCRStatusFailed     OCRStatus = "failed"
)

// Point is an (x, y) pixel coordinate.
type Point [2]float64

// Quad is a four point polygon, clockwise from the top-left corner. It is not
// necessarily axis aligned.
type Quad [4]Point

// Recognition is one recognized text line.
type Recognition struct {
	Text        string
	Confidence  float64
	Coordinates Quad
}

// MarshalJSON encodes the recognition as [coordinates, [text, confidence]].
func (r Recognition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Coordinates, []any{r.Text, r.Confidence}})
}

func (r *Recognition) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("recognition: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.Coordinates); err != nil {
		return fmt.Errorf("recognition coordinates: %w", err)
	}
	var textConf []json.RawMessage
	if err := json.Unmarshal(raw[1], &textConf); err != nil {
		return err
	}
	if len(textConf) != 2 {
		return fmt.Errorf("recognition: expected [text, confidence], got %d elements", len(textConf))
	}
	if err := json.Unmarshal(textConf[0], &r.Text); err != nil {
		return fmt.Errorf("recognition text: %w", err)
	}
	if err := json.Unmarshal(textConf[1], &r.Confidence); err != nil {
		return fmt.Errorf("recognition confidence: %w", err)
	}
	return nil
}

type OCRData struct {
	Structured []Recognition `json:"structured"`
	Raw        string        `json:"raw"`
}

type PageResult struct {
	PageNumber    int            `json:"page_number"`
	ImagePath     string         `json:"image_path"`
	ThumbnailPath string         `json:"thumbnail_path"`
	TextPath      string         `json:"text_path"`
	OCRData       OCRData        `json:"ocr_data"`
	Metadata      map[string]any `json:"metadata"`
}

// ProcessingResult is the output of one document processing call.
type ProcessingResult struct {
	DocumentID         string         `json:"document_id"`
	TenantID           string         `json:"tenant_id"`
	CaseID             string         `json:"case_id"`
	Filename           string         `json:"filename"`
	OriginalPath       string         `json:"original_path"`
	BasePath           string         `json:"base_path"`
	DocumentType       DocumentType   `json:"document_type"`
	Pages              []PageResult   `json:"pages"`
	Metadata           map[string]any `json:"metadata"`
	ProcessingComplete bool           `json:"processing_complete"`
	ProcessingTime     time.Duration  `json:"-"`
	Timestamp          time.Time      `json:"timestamp"`
}

// MarshalJSON reports processing_time in seconds.
func (r ProcessingResult) MarshalJSON() ([]byte, error) {
	type alias ProcessingResult
	return json.Marshal(struct {
		alias
		ProcessingTime float64 `json:"processing_time"`
	}{
		alias:          alias(r),
		ProcessingTime: r.ProcessingTime.Seconds(),
	})
}

// RawText joins the raw OCR text of all pages in page order.
func (r *ProcessingResult) RawText() string {
	parts := make([]string, len(r.Pages))
	for i, page := range r.Pages {
		parts[i] = page.OCRData.Raw
	}
	return strings.Join(parts, "\n")
}

type Preview struct {
	DocumentID   string `json:"document_id"`
	TenantID     string `json:"tenant_id"`
	CaseID       string `json:"case_id"`
	Page         int    `json:"page"`
	PageCount    int    `json:"page_count"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	OCRText      string `json:"ocr_text"`
}

type StoragePaths struct {
	Original string `json:"original" bson:"original"`
	BasePath string `json:"base_path" bson:"base_path"`
}

type DocumentPage struct {
	PageNumber    int       `json:"page_number" bson:"page_number" db:"page_number"`
	ImagePath     string    `json:"image_path" bson:"image_path" db:"image_path"`
	ThumbnailPath string    `json:"thumbnail_path" bson:"thumbnail_path" db:"thumbnail_path"`
	TextPath      string    `json:"text_path" bson:"text_path" db:"text_path"`
	OCRText       string    `json:"ocr_text" bson:"ocr_text" db:"ocr_text"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Document is the persisted record of a processed upload.
type Document struct {
	ID           string         `json:"id" bson:"_id"`
	TenantID     string         `json:"tenant_id" bson:"tenant_id"`
	CaseID       string         `json:"case_id" bson:"case_id"`
	Filename     string         `json:"filename" bson:"filename"`
	DocumentType DocumentType   `json:"document_type" bson:"document_type"`
	StoragePaths StoragePaths   `json:"storage_paths" bson:"storage_paths"`
	PageCount    int            `json:"page_count" bson:"page_count"`
	OCRStatus    OCRStatus      `json:"ocr_status" bson:"ocr_status"`
	OCRError     *string        `json:"ocr_error,omitempty" bson:"ocr_error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" bson:"metadata"`
	Pages        []DocumentPage `json:"pages,omitempty" bson:"pages"`
	Analysis     *string        `json:"analysis,omitempty" bson:"analysis,omitempty"`
	CreatedBy    *string        `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
	Deleted      bool           `json:"-" bson:"deleted"`
}

type UploadRequest struct {
	File        []byte
	Filename    string
	ContentType string
	TenantID    string
	CaseID      string
	Description string
	Tags        []string
	CreatedBy   string
	Analyze     bool
}

type UploadResponse struct {
	DocumentID     string       `json:"document_id"`
	Filename       string       `json:"filename"`
	DocumentType   DocumentType `json:"document_type"`
	Pages          int          `json:"pages"`
	ProcessingTime float64      `json:"processing_time"`
	Analysis       *string      `json:"analysis,omitempty"`
	AnalysisError  string       `json:"analysis_error,omitempty"`
	Message        string       `json:"message"`
}

type AnalysisResponse struct {
	ID         string    `json:"id"`
	Analysis   string    `json:"analysis"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}
