package processor

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/forensic-docs-api/internal/storage"
	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// Artifact names below a document's base path.
const (
	originalName  = "original"
	pagesDir      = "pages"
	pageImageName = "page.jpg"
	thumbnailName = "thumbnail.jpg"
	ocrTextName   = "ocr.txt"
)

// DocumentBasePath is tenants/{tenant}/cases/{case}/documents/{document}.
func DocumentBasePath(tenantID, caseID, documentID string) string {
	return path.Join(storage.TenantsRoot, tenantID, "cases", caseID, "documents", documentID)
}

// OriginalPath is the stored location of the uploaded file. ext includes the
// leading dot and is lower-cased.
func OriginalPath(base, ext string) string {
	return path.Join(base, originalName+strings.ToLower(ext))
}

func PagePath(base string, page int, name string) string {
	return path.Join(base, pagesDir, strconv.Itoa(page), name)
}

// pageNumberOf extracts n from a path under {base}/pages/{n}/.
func pageNumberOf(base, p string) (int, bool) {
	rest, ok := strings.CutPrefix(p, path.Join(base, pagesDir)+"/")
	if !ok {
		return 0, false
	}
	seg, _, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(seg)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// validateSegment rejects identifiers that would change the storage layout.
func validateSegment(name, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return utils.Wrap(utils.ErrValidation, errors.New("empty value"), "%s is required", name)
	case value == "." || value == ".." || strings.ContainsAny(value, `/\`):
		return utils.Wrap(utils.ErrValidation, fmt.Errorf("invalid value %q", value), "invalid %s", name)
	}
	return nil
}
