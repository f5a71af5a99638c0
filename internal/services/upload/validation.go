package upload

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSizeBytes caps report uploads at 20 MB
	MaxFileSizeBytes = 20 << 20
)

// allowedExtensions maps accepted report file extensions to the type
// hint sent to the backend
var allowedExtensions = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".heic": "image",
	".pdf":  "pdf",
}

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateFile checks the file name and size before submission. The
// backend validates again server-side; this is the caller-side gate.
func ValidateFile(fileName string, size int64) error {
	if fileName == "" {
		return &ValidationError{"FileName", "required"}
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return &ValidationError{"FileName", fmt.Sprintf("unsupported file type: %s (expected jpg, jpeg, png, heic, or pdf)", ext)}
	}

	if size <= 0 {
		return &ValidationError{"File", "empty file"}
	}
	if size > MaxFileSizeBytes {
		return &ValidationError{"File", fmt.Sprintf("file too large: %d bytes (maximum %d)", size, MaxFileSizeBytes)}
	}

	return nil
}

// TypeHintFor derives the backend type hint from the file extension
func TypeHintFor(fileName string) string {
	return allowedExtensions[strings.ToLower(filepath.Ext(fileName))]
}
