package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext. A missing leading dot on
// ext is added.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	dir, name, _ := split(path)
	return filepath.Join(dir, name+ext)
}

// WithSuffix inserts suffix between the file name and its extension,
// e.g. "icon/app.png" + "_fixed" -> "icon/app_fixed.png".
func WithSuffix(path, suffix string) string {
	if path == "" {
		return path
	}
	dir, name, ext := split(path)
	return filepath.Join(dir, name+suffix+ext)
}

// split breaks path into directory, base name and extension. Dotfiles
// such as ".env" have no extension.
func split(path string) (dir, name, ext string) {
	dir = filepath.Dir(path)
	filename := filepath.Base(path)

	lastDot := strings.LastIndex(filename, ".")
	if lastDot <= 0 {
		return dir, filename, ""
	}
	return dir, filename[:lastDot], filename[lastDot:]
}
