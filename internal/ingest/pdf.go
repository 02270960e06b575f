package ingest

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ReadPDFPages returns the plain text of every page, indexed from 0. Pages without a
// content stream come back as "".
func ReadPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]string, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages[i] = text
	}
	return pages, nil
}
