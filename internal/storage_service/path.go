package storage_service

import "strings"

// Components returns the non-empty '/' separated parts of path.
func Components(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitPath returns the containing directory and the final component.
func SplitPath(path string) (string, string, error) {
	comps := Components(path)
	if len(comps) == 0 {
		return "", "", ErrInvalidPath
	}
	parent := "/" + strings.Join(comps[:len(comps)-1], "/")
	return parent, comps[len(comps)-1], nil
}

// Clean returns path in canonical "/a/b" form.
func Clean(path string) string {
	return "/" + strings.Join(Components(path), "/")
}

// IsWithin reports whether path equals dir or lies below it.
func IsWithin(path, dir string) bool {
	p, d := Components(path), Components(dir)
	if len(p) < len(d) {
		return false
	}
	for i := range d {
		if p[i] != d[i] {
			return false
		}
	}
	return true
}
