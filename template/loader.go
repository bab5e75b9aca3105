package template

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"
)

// Loader reads templates from a file tree.
type Loader struct {
	fsys fs.FS
}

func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

func fsPath(name string) string {
	p := path.Clean("/" + name)
	if p == "/" {
		return "."
	}
	return strings.TrimPrefix(p, "/")
}

// ReadFile returns one file of the template tree.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(l.fsys, fsPath(name))
}

// Load returns the manifest of folder. A sibling <folder>.json takes
// precedence over the folder contents.
func (l *Loader) Load(folder string) (Manifest, error) {
	root := fsPath(folder)
	if root == "." {
		return nil, fmt.Errorf("template: folder name is required")
	}
	data, err := fs.ReadFile(l.fsys, root+".json")
	switch {
	case err == nil:
		m, err := Parse(data)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Source = root + ".json"
			}
			return nil, err
		}
		return m, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	return l.walk(root)
}

func (l *Loader) walk(root string) (Manifest, error) {
	info, err := fs.Stat(l.fsys, root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template: %s is not a folder", root)
	}
	m := Manifest{}
	err = fs.WalkDir(l.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(l.fsys, p)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(p, root)
		dir, name := path.Split(rel)
		dir = path.Clean("/" + dir)
		if m[dir] == nil {
			m[dir] = map[string]Content{}
		}
		if utf8.Valid(data) {
			m[dir][name] = Text(string(data))
		} else {
			m[dir][name] = Binary(data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
