package analysis

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"floroexpress/internal/domain"
)

var (
	blueprintKeywords = []string{"blueprint", "architectural"}
	blueprintExts     = []string{".dwg", ".dxf", ".cad"}
	secureKeywords    = []string{"confidential", "contract", "legal"}
	scannedKeywords   = []string{"scan"}
	pictureExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}
)

// Classify assigns a document to an analysis category from its file name
// and MIME type. Name keywords win over the MIME type.
func Classify(doc domain.DocumentDescriptor) domain.FileType {
	name := strings.ToLower(doc.Name)
	ext := filepath.Ext(name)
	mime := strings.ToLower(doc.Type)

	switch {
	case containsAny(name, blueprintKeywords) || hasAny(ext, blueprintExts):
		return domain.FileTypeBlueprint
	case containsAny(name, secureKeywords):
		return domain.FileTypeSecure
	case containsAny(name, scannedKeywords):
		return domain.FileTypeScanned
	case strings.HasPrefix(mime, "image/") || hasAny(ext, pictureExtensions):
		return domain.FileTypePicture
	default:
		return domain.FileTypeText
	}
}

// FormatFileSize renders bytes with a binary unit, e.g. "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	rounded := math.Round(value*100) / 100
	return fmt.Sprintf("%s %s", strconv.FormatFloat(rounded, 'f', -1, 64), units[i])
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hasAny(ext string, exts []string) bool {
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
