// Package pdftest builds minimal real PDF documents for tests, so the parsing
// path can be exercised without fixture files.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Document assembles a valid single-font PDF with one page per text. Each page
// draws its text with a single Tj operator, which is enough for plain-text
// extraction. The cross-reference table is computed from the real byte offsets,
// so strict parsers accept the output.
func Document(pageTexts ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	// Objects: 1 catalog, 2 page tree, 3 font, then a page and a content
	// stream per text.
	objCount := 3 + 2*len(pageTexts)
	offsets := make([]int, objCount+1)

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	kids := make([]string, len(pageTexts))
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pageTexts)))
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, text := range pageTexts {
		pageNum := 4 + 2*i
		contentNum := pageNum + 1
		writeObj(pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentNum))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escapeString(text))
		writeObj(contentNum, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", objCount+1)
	// Each xref entry is exactly 20 bytes including the trailing space+newline.
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= objCount; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		objCount+1, xrefStart)
	return buf.Bytes()
}

// escapeString escapes the characters with special meaning inside a PDF
// literal string.
func escapeString(s string) string {
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
}
