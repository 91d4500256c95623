package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStageErrorCarriesKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("process: %w", &StageError{
		Kind:  ErrStorage,
		Stage: "store_page_image",
		Page:  2,
		Path:  "tenants/T1/cases/C1/documents/d/pages/2/page.jpg",
		Err:   cause,
	})

	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage in chain")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause in chain")
	}
	if errors.Is(err, ErrRecognition) {
		t.Errorf("did not expect ErrRecognition")
	}
	want := "process: store_page_image page 2 (tenants/T1/cases/C1/documents/d/pages/2/page.jpg): disk full"
	if err.Error() != want {
		t.Errorf("unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := Wrap(ErrNotFound, errors.New("no such key"), "get %s", "a/b")
	outer := Wrap(ErrStorage, inner, "preview")

	if KindOf(outer) != ErrNotFound {
		t.Errorf("expected ErrNotFound to survive rewrapping, got %v", KindOf(outer))
	}
	if outer.Error() != "preview: get a/b: no such key" {
		t.Errorf("unexpected message %q", outer.Error())
	}
	if Wrap(ErrStorage, nil, "noop") != nil {
		t.Errorf("wrapping nil should return nil")
	}
}

func TestToAppErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported", Wrap(ErrUnsupportedFileType, errors.New(".docx"), "classify"), http.StatusUnsupportedMediaType},
		{"validation", Wrap(ErrValidation, errors.New("bad tenant"), "upload"), http.StatusBadRequest},
		{"not found", Wrap(ErrNotFound, errors.New("missing"), "get"), http.StatusNotFound},
		{"conversion", Wrap(ErrConversion, errors.New("truncated"), "convert"), http.StatusUnprocessableEntity},
		{"recognition", Wrap(ErrRecognition, errors.New("engine"), "ocr"), http.StatusUnprocessableEntity},
		{"storage", Wrap(ErrStorage, errors.New("timeout"), "save"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"app error", NewForbiddenError("Invalid tenant ID"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAppError(tt.err, "Internal server error")
			if got.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", got.StatusCode, tt.want)
			}
		})
	}

	if msg := ToAppError(errors.New("secret detail"), "Failed to store document").Message; msg != "Failed to store document" {
		t.Errorf("internal errors should not leak details, got %q", msg)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"case1.pdf":             "case1.pdf",
		"../../etc/passwd":      "passwd",
		`C:\scans\page?1.png`:   "page_1.png",
		"  report   final .jpg": "report final .jpg",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if ext := FileExtension("SCAN.PDF"); ext != ".pdf" {
		t.Errorf("FileExtension = %q", ext)
	}
}
