package models

import "time"

const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"

	CaseStatusOpen = "open"

	ReportStatusDraft = "draft"
)

// Client is a tenant of the system.
type Client struct {
	ID           string         `json:"id" bson:"_id"`
	Name         string         `json:"name" bson:"name"`
	TenantCode   string         `json:"tenant_code" bson:"tenant_code"`
	ContactEmail string         `json:"contact_email" bson:"contact_email"`
	ContactName  *string        `json:"contact_name,omitempty" bson:"contact_name,omitempty"`
	ContactPhone *string        `json:"contact_phone,omitempty" bson:"contact_phone,omitempty"`
	Settings     map[string]any `json:"settings,omitempty" bson:"settings"`
	Status       string         `json:"status" bson:"status"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
	Deleted      bool           `json:"-" bson:"deleted"`
}

type CaseDocument struct {
	DocumentID   string       `json:"document_id" bson:"document_id"`
	Filename     string       `json:"filename" bson:"filename"`
	DocumentType DocumentType `json:"document_type" bson:"document_type"`
	PageCount    int          `json:"page_count" bson:"page_count"`
	AddedAt      time.Time    `json:"added_at" bson:"added_at"`
}

type Case struct {
	ID          string         `json:"id" bson:"_id"`
	TenantID    string         `json:"tenant_id" bson:"tenant_id"`
	CaseNumber  string         `json:"case_number" bson:"case_number"`
	Title       string         `json:"title" bson:"title"`
	Description *string        `json:"description,omitempty" bson:"description,omitempty"`
	Tags        []string       `json:"tags" bson:"tags"`
	Status      string         `json:"status" bson:"status"`
	Documents   []CaseDocument `json:"documents" bson:"documents"`
	CreatedBy   *string        `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
	Deleted     bool           `json:"-" bson:"deleted"`
}

type CaseFilter struct {
	TenantID string
	Status   string
	Tags     []string
	Search   string
	Limit    int
	Skip     int
}

// CaseUpdate holds the mutable fields of a case; nil means unchanged.
type CaseUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Status      *string   `json:"status,omitempty"`
}

type Report struct {
	ID              string         `json:"id" bson:"_id"`
	TenantID        string         `json:"tenant_id" bson:"tenant_id"`
	CaseID          string         `json:"case_id" bson:"case_id"`
	Title           string         `json:"title" bson:"title"`
	ReportType      string         `json:"report_type" bson:"report_type"`
	Content         map[string]any `json:"content" bson:"content"`
	DocumentIDs     []string       `json:"document_ids" bson:"document_ids"`
	FieldData       map[string]any `json:"field_data" bson:"field_data"`
	Status          string         `json:"status" bson:"status"`
	AnalysisResults *string        `json:"analysis_results,omitempty" bson:"analysis_results,omitempty"`
	CreatedBy       *string        `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at"`
	Deleted         bool           `json:"-" bson:"deleted"`
}

type ReportUpdate struct {
	Title       *string         `json:"title,omitempty"`
	Content     *map[string]any `json:"content,omitempty"`
	DocumentIDs *[]string       `json:"document_ids,omitempty"`
	FieldData   *map[string]any `json:"field_data,omitempty"`
	Status      *string         `json:"status,omitempty"`
}

type CreateClientRequest struct {
	Name         string         `json:"name"`
	ContactEmail string         `json:"contact_email"`
	ContactName  *string        `json:"contact_name,omitempty"`
	ContactPhone *string        `json:"contact_phone,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
}

type CreateCaseRequest struct {
	TenantID    string   `json:"tenant_id"`
	CaseNumber  string   `json:"case_number,omitempty"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status,omitempty"`
	CreatedBy   *string  `json:"created_by,omitempty"`
}

type CreateReportRequest struct {
	TenantID    string         `json:"tenant_id"`
	CaseID      string         `json:"case_id"`
	Title       string         `json:"title"`
	ReportType  string         `json:"report_type"`
	Content     map[string]any `json:"content"`
	DocumentIDs []string       `json:"document_ids,omitempty"`
	FieldData   map[string]any `json:"field_data,omitempty"`
	CreatedBy   *string        `json:"created_by,omitempty"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
	Total int `json:"total"`
}
