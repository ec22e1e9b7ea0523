package submit

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LoadAttachment reads a file from disk into an Attachment.
// The media type is derived from the extension, falling back to content sniffing.
func LoadAttachment(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", path, err)
	}

	contentType := DetectContentType(path)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Attachment{
		Name:        SanitizeFilename(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// DetectContentType returns the image media type for a path based on its
// extension, or "" when the extension is not a known image type.
func DetectContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return ""
}

// SanitizeFilename reduces a path to a base name safe to send as a multipart
// file name or to write under a local directory.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, "..", "")
	base = strings.ReplaceAll(base, "/", "_")
	if base == "" || base == "." {
		return ""
	}
	return base
}
