package pdfextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// Page is one extracted page of a PDF, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// IsPDF checks the payload header for the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Extractor parses PDFs with github.com/ledongthuc/pdf.
type Extractor struct{}

// PageCount parses the PDF structure and returns the number of pages.
func (Extractor) PageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}

// ExtractPages returns the plain text of each page. Pages whose text cannot be
// decoded are returned empty rather than failing the whole document.
func (Extractor) ExtractPages(data []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
