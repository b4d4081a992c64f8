package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Extractor turns the raw bytes of a PDF into plain text, page by page in
// reading order. Parsing happens in memory; nothing is written to disk.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// NewExtractor returns the UniPDF extractor when a UniDoc license key is
// available and the pure Go fallback otherwise.
func NewExtractor(licenseKey string) Extractor {
	if licenseKey != "" {
		if err := license.SetMeteredKey(licenseKey); err != nil {
			log.Printf("EXTRACTOR WARN: Failed to set UniDoc license key: %v. Falling back to the plain PDF reader.", err)
			return &PlainPDFExtractor{}
		}
		return &UniPDFExtractor{}
	}
	return &PlainPDFExtractor{}
}

// UniPDFExtractor uses UniPDF to get all text from a PDF.
type UniPDFExtractor struct{}

func (e *UniPDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer recoverExtraction(&err)

	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", kindError(ErrExtraction, err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", kindError(ErrExtraction, err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", kindError(ErrExtraction, fmt.Errorf("page %d: %w", i, err))
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", kindError(ErrExtraction, fmt.Errorf("page %d: %w", i, err))
		}

		pageText, err := ex.ExtractText()
		if err != nil {
			return "", kindError(ErrExtraction, fmt.Errorf("page %d: %w", i, err))
		}
		sb.WriteString(pageText)
	}

	log.Printf("EXTRACTOR: Extracted %d characters from %d pages.", sb.Len(), numPages)
	return sb.String(), nil
}

// PlainPDFExtractor reads PDFs with ledongthuc/pdf. It needs no license key.
type PlainPDFExtractor struct{}

func (e *PlainPDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer recoverExtraction(&err)

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", kindError(ErrExtraction, err)
	}

	var sb strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", kindError(ErrExtraction, fmt.Errorf("page %d: %w", i, err))
		}
		sb.WriteString(pageText)
	}

	log.Printf("EXTRACTOR: Extracted %d characters from %d pages.", sb.Len(), numPages)
	return sb.String(), nil
}

// recoverExtraction converts a panic inside a PDF library into ErrExtraction.
// Both readers panic on some malformed cross-reference tables.
func recoverExtraction(err *error) {
	if r := recover(); r != nil {
		*err = kindError(ErrExtraction, fmt.Errorf("malformed PDF: %v", r))
	}
}
