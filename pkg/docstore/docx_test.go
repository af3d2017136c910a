package docstore

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocx packs a minimal word/document.xml into an in-memory archive.
func buildDocx(t *testing.T, documentXML string) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return bytes.NewReader(buf.Bytes())
}

const docxHeader = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const docxFooter = `</w:body></w:document>`

func TestParseDocxParagraphs(t *testing.T) {
	r := buildDocx(t, docxHeader+
		`<w:p><w:r><w:t>Chapter 1 Scope</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>This policy applies to </w:t></w:r><w:r><w:t>all staff.</w:t></w:r></w:p>`+
		docxFooter)

	doc, err := ParseDocx(r, r.Size())
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1 Scope\nThis policy applies to all staff.\n", doc.Text)
	assert.Empty(t, doc.Tables)
}

func TestParseDocxTable(t *testing.T) {
	r := buildDocx(t, docxHeader+
		`<w:tbl>`+
		`<w:tr><w:tc><w:p><w:r><w:t>Amended Text</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p><w:r><w:t>Current Text</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p><w:r><w:t>Explanation</w:t></w:r></w:p></w:tc></w:tr>`+
		`<w:tr><w:tc><w:p><w:r><w:t>Article 2</w:t></w:r></w:p><w:p><w:r><w:t>New wording.</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p><w:r><w:t>Old wording.</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p><w:r><w:t>Because.</w:t></w:r></w:p></w:tc></w:tr>`+
		`</w:tbl>`+
		docxFooter)

	doc, err := ParseDocx(r, r.Size())
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	require.Len(t, doc.Tables[0], 2)

	assert.Equal(t, []string{"Amended Text", "Current Text", "Explanation"}, doc.Tables[0][0])
	assert.Equal(t, "Article 2\nNew wording.", doc.Tables[0][1][0])
	assert.Equal(t, "Old wording.", doc.Tables[0][1][1])

	// Table rows flow into the plain text too.
	assert.Contains(t, doc.Text, "Amended Text\tCurrent Text\tExplanation")
}

func TestParseDocxLineBreaks(t *testing.T) {
	r := buildDocx(t, docxHeader+
		`<w:p><w:r><w:t>First line</w:t><w:br/><w:t>second line</w:t></w:r></w:p>`+
		docxFooter)

	doc, err := ParseDocx(r, r.Size())
	require.NoError(t, err)
	assert.Equal(t, "First line\nsecond line\n", doc.Text)
}

func TestParseDocxMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r := bytes.NewReader(buf.Bytes())
	_, err = ParseDocx(r, r.Size())
	assert.Error(t, err)
}

func TestParseDocxNotAnArchive(t *testing.T) {
	r := bytes.NewReader([]byte("plain text, not a zip"))
	_, err := ParseDocx(r, r.Size())
	assert.Error(t, err)
}
