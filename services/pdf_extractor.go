package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"pdf-query-system/internal/logger"
)

var (
	ErrInvalidPDF = errors.New("file does not appear to be a valid PDF")
	ErrNoText     = errors.New("no extractable text in PDF")
)

// PDFExtractor pulls plain text out of PDF bytes page by page.
type PDFExtractor struct {
	maxSize int64
}

func NewPDFExtractor(maxSize int64) *PDFExtractor {
	return &PDFExtractor{maxSize: maxSize}
}

// ExtractionResult contains the result of PDF text extraction
type ExtractionResult struct {
	Pages          []string
	PageCount      int
	CharCount      int
	ProcessingTime time.Duration
}

// Text joins pages with a marker so answers can cite page numbers.
func (r *ExtractionResult) Text() string {
	var b strings.Builder
	for i, page := range r.Pages {
		if page == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- PAGE %d ---\n", i+1)
		b.WriteString(page)
	}
	return b.String()
}

// HasPDFHeader reports whether content starts with the %PDF magic.
func HasPDFHeader(content []byte) bool {
	return bytes.HasPrefix(content, []byte("%PDF"))
}

func (e *PDFExtractor) Extract(ctx context.Context, content []byte) (*ExtractionResult, error) {
	start := time.Now()

	if !HasPDFHeader(content) {
		return nil, ErrInvalidPDF
	}
	if e.maxSize > 0 && int64(len(content)) > e.maxSize {
		return nil, fmt.Errorf("pdf too large for extraction: %d bytes", len(content))
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pageCount := reader.NumPage()
	result := &ExtractionResult{
		Pages:     make([]string, pageCount),
		PageCount: pageCount,
	}

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		// font names are page-local resources
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from page", "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		result.Pages[i-1] = text
		result.CharCount += len(text)
	}

	if result.CharCount == 0 {
		return nil, ErrNoText
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}
