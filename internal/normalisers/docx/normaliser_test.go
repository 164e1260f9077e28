package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// buildDocx zips files into an in-memory archive.
func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
}

func TestSupportedMIMETypes(t *testing.T) {
	n := New()
	assert.Equal(t, []string{MIMEType}, n.SupportedMIMETypes())
	assert.Equal(t, 50, n.Priority())
}

func TestExtractText_ParagraphsAndHeadings(t *testing.T) {
	raw := buildDocx(t, map[string]string{
		"word/document.xml": documentXML(`
			<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Handbook</w:t></w:r></w:p>
			<w:p><w:r><w:t xml:space="preserve">Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
			<w:p><w:pPr><w:pStyle w:val="Heading2"/><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Setup</w:t></w:r></w:p>
			<w:p><w:r><w:t>Step</w:t><w:tab/><w:t>one</w:t></w:r></w:p>
			<w:p></w:p>`),
	})

	text, err := New().ExtractText(context.Background(), raw, MIMEType)
	require.NoError(t, err)
	assert.Equal(t, "# Handbook\n\nHello world\n\n## Setup\n\nStep\tone", text)
}

func TestExtractText_TableParagraphs(t *testing.T) {
	raw := buildDocx(t, map[string]string{
		"word/document.xml": documentXML(`
			<w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell one</w:t></w:r></w:p></w:tc>
			<w:tc><w:p><w:r><w:t>cell two</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`),
	})

	text, err := New().ExtractText(context.Background(), raw, MIMEType)
	require.NoError(t, err)
	assert.Equal(t, "cell one\n\ncell two", text)
}

func TestExtractText_NotAZip(t *testing.T) {
	_, err := New().ExtractText(context.Background(), []byte("plain text, not a docx"), MIMEType)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.True(t, domain.IsFatal(err))
}

func TestExtractText_MissingDocumentXML(t *testing.T) {
	raw := buildDocx(t, map[string]string{"docProps/core.xml": "<x/>"})

	_, err := New().ExtractText(context.Background(), raw, MIMEType)
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestExtractText_MalformedXML(t *testing.T) {
	raw := buildDocx(t, map[string]string{"word/document.xml": "<w:document><w:body><w:p>"})

	_, err := New().ExtractText(context.Background(), raw, MIMEType)
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestExtractText_UnsupportedMIME(t *testing.T) {
	_, err := New().ExtractText(context.Background(), nil, "text/plain")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 1, headingLevel("Heading1"))
	assert.Equal(t, 3, headingLevel("heading 3"))
	assert.Equal(t, 0, headingLevel("Heading7"))
	assert.Equal(t, 0, headingLevel("Normal"))
	assert.Equal(t, 0, headingLevel(""))
}
