package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var (
	invalidFilenameChars = regexp.MustCompile(`[\\/*?:"<>|\x00-\x1f]`)
	repeatedSpaces       = regexp.MustCompile(`\s+`)
)

func GenerateID() string {
	return uuid.NewString()
}

// SanitizeFilename normalizes a client supplied filename so it is safe to log
// and store. The extension is preserved.
func SanitizeFilename(name string) string {
	name = norm.NFC.String(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	name = invalidFilenameChars.ReplaceAllString(name, "_")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.Trim(name, ". ")
}

// FileExtension returns the lower-cased extension including the dot.
func FileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func FormatFileSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(1024*1024*1024))
	}
}
