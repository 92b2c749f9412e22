package analysis

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/ledongthuc/pdf"
)

const mediaTypePDF = "application/pdf"

// ExtractText returns the plain text of a PDF document.
func ExtractText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// isPDF reports whether doc is a PDF, by media type or magic bytes.
func isPDF(doc models.Document) bool {
	return doc.MediaType == mediaTypePDF || bytes.HasPrefix(doc.Data, []byte("%PDF-"))
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
