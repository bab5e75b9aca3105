// Package template reads wallet and application templates.
//
// A template is a manifest mapping directory to file name to content. It is
// stored either as a JSON document next to the template folder
// (<folder>.json, comments allowed) or as the folder itself.
package template

import (
	"encoding/json"
	"fmt"
	"maps"
	"path"
	"sort"

	"github.com/tidwall/jsonc"
)

// Manifest maps a directory ("/" for the template root) to its files.
type Manifest map[string]map[string]Content

// FileRecord is one flattened manifest entry.
type FileRecord struct {
	Path    string
	Content Content
}

// ParseError reports a manifest that could not be decoded.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return "template: parse manifest: " + e.Err.Error()
	}
	return fmt.Sprintf("template: parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes a JSON manifest. Comments and trailing commas are allowed.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, &ParseError{Err: err}
	}
	return m, nil
}

// Flatten lists every file as an absolute path, sorted by path.
func (m Manifest) Flatten() []FileRecord {
	var out []FileRecord
	for dir, files := range m {
		for name, content := range files {
			out = append(out, FileRecord{Path: path.Join("/", dir, name), Content: content})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Without returns a copy of m lacking dir/name. m is not modified.
func (m Manifest) Without(dir, name string) Manifest {
	out := make(Manifest, len(m))
	for d, files := range m {
		if d != dir {
			out[d] = files
			continue
		}
		rest := maps.Clone(files)
		delete(rest, name)
		out[d] = rest
	}
	return out
}
