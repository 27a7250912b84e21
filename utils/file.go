package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const DefaultPDFContentType = "application/pdf"

// ObjectKey builds the storage key for an uploaded file:
// pdfs/<random hex><original extension>.
func ObjectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return "pdfs/" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

func ContentTypeOrDefault(contentType string) string {
	if contentType == "" || contentType == "application/octet-stream" {
		return DefaultPDFContentType
	}
	return contentType
}

// TitleFromFilename strips directories and the extension.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
