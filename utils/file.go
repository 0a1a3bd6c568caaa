package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed 16-hex-char identifier, e.g. "doc_3f2a...".
func GenerateID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// SanitizeFileName maps anything outside [a-zA-Z0-9._-] to underscore so
// uploaded names are safe on every filesystem.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, name)
}

// SaveUpload writes uploaded bytes into uploadDir under a timestamped,
// sanitized name and returns the destination path.
func SaveUpload(data []byte, originalName, uploadDir string) (string, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(filepath.Base(originalName), ext)
	fileName := SanitizeFileName(fmt.Sprintf("%s_%d%s", base, time.Now().Unix(), ext))
	destPath := filepath.Join(uploadDir, fileName)

	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return destPath, nil
}

// RemoveFileIfExists deletes path, treating a missing file as success.
func RemoveFileIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FileType returns the lower-cased extension without the leading dot.
func FileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
