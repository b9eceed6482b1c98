package domain

import (
	"path/filepath"
	"strings"
)

const pdfExtension = ".pdf"

// IsPDFName reports whether filename carries the .pdf extension.
func IsPDFName(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), pdfExtension)
}
