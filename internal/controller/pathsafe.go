package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// allowedExtensions is the fixed allow-list for file-writing actions.
var allowedExtensions = map[string]bool{
	".py":   true,
	".json": true,
	".md":   true,
	".txt":  true,
	".yml":  true,
	".yaml": true,
}

// safeRelPath validates a model-supplied project-relative path and resolves
// it under root. Every check is mandatory: blank paths, absolute or
// home-anchored paths, ".." segments, disallowed extensions, and paths that
// escape the project root are all rejected before anything is written.
func safeRelPath(root, path string) (rel string, abs string, err error) {
	rel = strings.TrimSpace(path)
	if rel == "" {
		return "", "", errors.New("relative_path is required")
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "~") {
		return "", "", errors.New("absolute paths are not allowed")
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", "", errors.New("path traversal '..' is not allowed")
		}
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if !allowedExtensions[ext] {
		return "", "", fmt.Errorf("extension not allowed: %q", ext)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("resolve project root: %w", err)
	}
	abs = filepath.Clean(filepath.Join(absRoot, filepath.FromSlash(rel)))
	if abs != absRoot && !strings.HasPrefix(abs, absRoot+string(os.PathSeparator)) {
		return "", "", errors.New("write path is outside the project directory")
	}
	return rel, abs, nil
}
