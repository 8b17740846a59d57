package certificates

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Renderer turns a certificate into a printable document.
type Renderer interface {
	Render(c *Certificate) ([]byte, error)
	ContentType() string
}

// PDFRenderer draws a one page landscape A4 certificate with the standard
// Helvetica font. The page stream is Flate compressed.
type PDFRenderer struct {
	Title string
}

// NewPDFRenderer creates a renderer with the default heading.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{Title: "Certificate of Completion"}
}

// ContentType implements Renderer.
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

type textLine struct {
	size int
	y    int
	text string
}

// Render implements Renderer.
func (r *PDFRenderer) Render(c *Certificate) ([]byte, error) {
	lines := []textLine{
		{size: 36, y: 430, text: r.Title},
		{size: 16, y: 380, text: "This certifies that"},
		{size: 30, y: 330, text: c.StudentName},
		{size: 16, y: 280, text: "has completed the course"},
		{size: 24, y: 240, text: c.CourseTitle},
		{size: 12, y: 150, text: "Issued " + c.IssuedAt.UTC().Format("2 January 2006")},
		{size: 10, y: 90, text: "Certificate " + c.CertificateNo},
		{size: 10, y: 74, text: "Verification code " + c.VerificationCode},
	}

	var content bytes.Buffer
	for _, l := range lines {
		// Helvetica averages about half an em per glyph
		x := (842 - len(l.text)*l.size/2) / 2
		if x < 40 {
			x = 40
		}
		fmt.Fprintf(&content, "BT /F1 %d Tf %d %d Td (%s) Tj ET\n", l.size, x, l.y, pdfEscape(l.text))
	}

	var stream bytes.Buffer
	zw := zlib.NewWriter(&stream)
	if _, err := zw.Write(content.Bytes()); err != nil {
		return nil, fmt.Errorf("compress page: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress page: %w", err)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 842 595] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d /Filter /FlateDecode >>\nstream\n%s\nendstream", stream.Len(), stream.Bytes()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes(), nil
}

// pdfEscape quotes a string literal; characters outside printable ASCII
// are replaced since the standard fonts carry no Unicode mapping.
func pdfEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
