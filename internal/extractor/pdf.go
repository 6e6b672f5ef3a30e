// Package extractor pulls text out of uploaded PDF files.
package extractor

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// PDF extracts text page by page using MuPDF. A page that fails extraction
// is skipped so one bad page never aborts a whole upload.
type PDF struct {
	logger *zap.Logger
}

func NewPDF(logger *zap.Logger) *PDF {
	return &PDF{logger: logger}
}

// ExtractPages returns the text of each readable page, in page order.
// Unreadable pages yield empty strings. An error is returned only when the
// document itself cannot be opened.
func (p *PDF) ExtractPages(data []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			p.logger.Warn("skipping unreadable page",
				zap.Int("page", i),
				zap.Error(err))
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
