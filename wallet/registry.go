package wallet

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// Descriptor is one registry entry. Missing flags default to true.
type Descriptor struct {
	Seed        string `json:"seed"`
	HasTemplate *bool  `json:"hasTemplate,omitempty"`
	NewInstance *bool  `json:"newInstance,omitempty"`
}

// AppSource says how an app unit is obtained. It is either Reuse or
// Instantiate.
type AppSource interface {
	appSource()
}

// Reuse mounts an existing unit unchanged.
type Reuse struct {
	Key string
}

// Instantiate builds a fresh unit with Code mounted as its code folder,
// filled from the app template when FromTemplate is set.
type Instantiate struct {
	FromTemplate bool
	Code         string
}

func (Reuse) appSource()       {}
func (Instantiate) appSource() {}

func orTrue(v *bool) bool { return v == nil || *v }

func (d Descriptor) HasTemplateOrDefault() bool { return orTrue(d.HasTemplate) }

// Source maps the descriptor flags onto an AppSource.
func (d Descriptor) Source() AppSource {
	if !orTrue(d.NewInstance) {
		return Reuse{Key: d.Seed}
	}
	return Instantiate{FromTemplate: orTrue(d.HasTemplate), Code: d.Seed}
}

// Registry maps app names to descriptors. Names may carry a leading "/".
type Registry map[string]Descriptor

// ParseRegistry decodes a registry document. Comments are allowed.
func ParseRegistry(data []byte) (Registry, error) {
	var r Registry
	if err := json.Unmarshal(jsonc.ToJSON(data), &r); err != nil {
		return nil, err
	}
	if r == nil {
		r = Registry{}
	}
	return r, nil
}

// Names returns the registry keys sorted.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// lookup finds the registry key for an app name, with or without a leading "/".
func (r Registry) lookup(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if _, ok := r["/"+name]; ok {
		return "/" + name, true
	}
	if _, ok := r[name]; ok {
		return name, true
	}
	return "", false
}

// set stores d under name, replacing any entry for the same app.
func (r Registry) set(name string, d Descriptor) {
	if k, ok := r.lookup(name); ok {
		delete(r, k)
	}
	r[name] = d
}

// loadRegistry reads the on-disk registry. A missing file is an empty registry.
func (b *Builder) loadRegistry() (Registry, error) {
	p := path.Join(b.layout.AppsFolder, b.layout.RegistryFile)
	data, err := b.templates.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Registry{}, nil
	}
	if err != nil {
		return nil, &Error{Kind: KindTemplateRead, Stage: "read app registry", Path: p, Cause: err}
	}
	r, err := ParseRegistry(data)
	if err != nil {
		return nil, &Error{Kind: KindManifestParse, Stage: "parse app registry", Path: p, Cause: err}
	}
	return r, nil
}

type externalApp struct {
	Name string
	Seed string
}

// validAppName reports whether name is a single path element.
func validAppName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// externalApps reads appName=<name> / <name>Seed=<capability> pairs in the
// order the names appear. Names without a seed are skipped; names that are
// not a single path element are dropped with a warning.
func externalApps(params url.Values, logger *slog.Logger) []externalApp {
	var out []externalApp
	seen := map[string]bool{}
	for _, name := range params["appName"] {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if !validAppName(name) {
			logger.Warn("rejected external app name", "app", name)
			continue
		}
		seed := params.Get(name + "Seed")
		if seed == "" {
			continue
		}
		seen[name] = true
		out = append(out, externalApp{Name: name, Seed: seed})
	}
	return out
}
