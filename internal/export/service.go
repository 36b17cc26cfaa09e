package export

import (
	"context"
	"fmt"
	"strings"
)

// Converter turns a rendered HTML page into a downloadable file.
type Converter func(ctx context.Context, html, title string) (*Result, error)

// Service provides summary export functionality
type Service struct {
	pdf  Converter
	docx Converter
}

// NewService creates an export service backed by headless Chrome and pandoc.
func NewService() *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX}
}

// NewServiceWithConverters creates an export service with custom converters.
func NewServiceWithConverters(pdf, docx Converter) *Service {
	return &Service{pdf: pdf, docx: docx}
}

// ExportSummary generates an export of a daily summary in the requested format
func (s *Service) ExportSummary(ctx context.Context, doc SummaryDocument, format Format) (*Result, error) {
	contentHTML, err := MarkdownToHTML(doc.Markdown)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Daily Summary"
	}

	html, err := RenderSummaryHTML(TemplateData{
		Title:       title,
		Author:      doc.Author,
		Date:        doc.Date,
		Status:      doc.Status,
		ContentHTML: contentHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := title
	if !doc.Date.IsZero() {
		filename = "daily-summary-" + doc.Date.Format("2006-01-02")
	}

	switch format {
	case FormatPDF:
		return s.pdf(ctx, html, filename)
	case FormatDOCX:
		return s.docx(ctx, html, filename)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
