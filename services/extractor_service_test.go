package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// pagesPDF builds a minimal PDF with one page per text, shown in Helvetica.
func pagesPDF(pages ...string) []byte {
	// Objects 1-3 are the catalog, page tree and font; each page then adds a
	// page object and its content stream.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func onePagePDF(text string) []byte { return pagesPDF(text) }

func twoPagePDF(first, second string) []byte { return pagesPDF(first, second) }

func TestPlainPDFExtractor_Extract(t *testing.T) {
	text, err := (&PlainPDFExtractor{}).Extract(context.Background(), onePagePDF("The capital of France is Paris."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Paris") {
		t.Errorf("expected the page text, got %q", text)
	}
}

func TestPlainPDFExtractor_PageOrder(t *testing.T) {
	data := twoPagePDF("The capital of France ", "is Paris.")
	text, err := (&PlainPDFExtractor{}).Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "The capital of France is Paris." {
		t.Errorf("expected the pages joined in order, got %q", text)
	}
}

func TestUniPDFExtractor_Extract(t *testing.T) {
	key := os.Getenv("UNIDOC_LICENSE_KEY")
	if key == "" {
		t.Skip("UNIDOC_LICENSE_KEY not set")
	}
	ex := NewExtractor(key)
	text, err := ex.Extract(context.Background(), onePagePDF("The capital of France is Paris."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Paris") {
		t.Errorf("expected the page text, got %q", text)
	}
}

func TestExtractors_InvalidBytes(t *testing.T) {
	inputs := map[string][]byte{
		"empty":     {},
		"not a pdf": []byte("this is plain text, not a PDF"),
		"truncated": onePagePDF("Paris")[:40],
	}
	for _, ex := range []Extractor{&PlainPDFExtractor{}, &UniPDFExtractor{}} {
		for name, data := range inputs {
			_, err := ex.Extract(context.Background(), data)
			if !errors.Is(err, ErrExtraction) {
				t.Errorf("%T %s: expected ErrExtraction, got %v", ex, name, err)
			}
		}
	}
}

func TestNewExtractor_WithoutKey(t *testing.T) {
	if _, ok := NewExtractor("").(*PlainPDFExtractor); !ok {
		t.Error("expected the plain extractor without a license key")
	}
}
