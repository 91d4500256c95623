package converter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/BerylCAtieno/forensic-docs-api/internal/utils"
)

// textLayerProbePages bounds how many pages are scanned for embedded text.
const textLayerProbePages = 3

type PDFInfo struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Producer     string `json:"producer,omitempty"`
	PageCount    int    `json:"page_count"`
	HasTextLayer bool   `json:"has_text_layer"`
}

// PDFInfo reads the document information dictionary and checks whether the
// first pages carry a text layer. Scanned documents usually do not.
func (c *Converter) PDFInfo(path string) (info *PDFInfo, err error) {
	defer func() {
		// The reader panics on some malformed files.
		if r := recover(); r != nil {
			info, err = nil, utils.Wrap(utils.ErrConversion, fmt.Errorf("%v", r), "failed to read PDF %s", filepath.Base(path))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, utils.Wrap(utils.ErrConversion, err, "failed to open PDF %s", filepath.Base(path))
	}
	defer f.Close()

	meta := reader.Trailer().Key("Info")
	info = &PDFInfo{
		Title:     strings.TrimSpace(meta.Key("Title").Text()),
		Author:    strings.TrimSpace(meta.Key("Author").Text()),
		Producer:  strings.TrimSpace(meta.Key("Producer").Text()),
		PageCount: reader.NumPage(),
	}

	for i := 1; i <= info.PageCount && i <= textLayerProbePages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			info.HasTextLayer = true
			break
		}
	}

	return info, nil
}

// Metadata flattens the info into document metadata fields.
func (i *PDFInfo) Metadata() map[string]any {
	m := map[string]any{
		"pdf_page_count":     i.PageCount,
		"pdf_has_text_layer": i.HasTextLayer,
	}
	if i.Title != "" {
		m["pdf_title"] = i.Title
	}
	if i.Author != "" {
		m["pdf_author"] = i.Author
	}
	if i.Producer != "" {
		m["pdf_producer"] = i.Producer
	}
	return m
}
