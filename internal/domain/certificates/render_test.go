package certificates

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/id"
)

func TestPDFRenderer_Render(t *testing.T) {
	c := NewCertificate(id.New(), id.New(), id.New(), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	c.CertificateNo = "CRT-000007"
	c.StudentName = "Zoë (Ann) Smith"
	c.CourseTitle = "Go in practice"

	r := NewPDFRenderer()
	doc, err := r.Render(c)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", r.ContentType())
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(bytes.TrimSpace(doc), []byte("%%EOF")))
	assert.Contains(t, string(doc), "/FlateDecode")
	assert.Contains(t, string(doc), "startxref")
}

func TestPDFEscape(t *testing.T) {
	assert.Equal(t, `Zo? \(Ann\) \\ x`, pdfEscape(`Zoë (Ann) \ x`))
}
