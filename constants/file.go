package constants

import "strings"

// AllowedExtensions holds the default allowed file extensions for invoice ingestion.
// Invoices arrive as OCR-extracted JSON documents.
var AllowedExtensions = map[string]struct{}{
	"json": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
