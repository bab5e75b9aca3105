package unit

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath returns the canonical absolute form of p.
func CleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

// FilePath validates p as a file location and returns its canonical form.
func FilePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	c := CleanPath(p)
	if c == "/" {
		return "", fmt.Errorf("%w: %q names the root", ErrInvalidPath, p)
	}
	return c, nil
}

// Within reports whether p lies strictly below dir, returning the remainder.
func Within(dir, p string) (string, bool) {
	if dir == "/" {
		return strings.TrimPrefix(p, "/"), p != "/"
	}
	rest, ok := strings.CutPrefix(p, dir+"/")
	return rest, ok && rest != ""
}
