// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// readPDF extracts plain text per page. Pages that fail to decode are
// skipped; a document yielding no text at all is an error.
func readPDF(path string) ([]page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		pages = append(pages, page{label: strconv.Itoa(i), text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return pages, nil
}
