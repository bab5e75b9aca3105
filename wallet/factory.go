package wallet

import (
	"context"
	"errors"
	"fmt"
	"path"

	"xdao.co/wallet/keys"
	"xdao.co/wallet/template"
	"xdao.co/wallet/unit"
)

// loadTemplate reads a template folder, classifying read and parse failures.
func (b *Builder) loadTemplate(folder string) (template.Manifest, error) {
	m, err := b.templates.Load(folder)
	if err == nil {
		return m, nil
	}
	var pe *template.ParseError
	if errors.As(err, &pe) {
		return nil, &Error{Kind: KindManifestParse, Stage: "parse template", Path: folder, Cause: err}
	}
	return nil, &Error{Kind: KindTemplateRead, Stage: "read template", Path: folder, Cause: err}
}

// BuildApp creates a fresh app unit with code mounted as its code folder and
// returns the new unit's key. With fromTemplate, the app template is written
// under the app folder first. The code folder gets an initializer that
// defers to the app's own.
func (b *Builder) BuildApp(ctx context.Context, name, code string, fromTemplate bool) (string, error) {
	var records []template.FileRecord
	if fromTemplate {
		m, err := b.loadTemplate(path.Join(b.layout.AppsFolder, name))
		if err != nil {
			return "", withApp(err, name)
		}
		records = m.Flatten()
	}

	u, err := b.resolver.Create(ctx, keys.TemplateSeed(b.domain).String(), unit.CreateOptions{})
	if err != nil {
		return "", &Error{Kind: KindUnitCreate, Stage: "create app unit", App: name, Cause: err}
	}
	codeDir := "/" + b.layout.CodeFolder
	if err := u.Mount(ctx, codeDir, code); err != nil {
		return "", &Error{Kind: KindMount, Stage: "mount app code", App: name, Path: codeDir, Cause: err}
	}
	if err := WriteFiles(ctx, u, records, "/"+b.layout.AppFolder); err != nil {
		return "", withApp(err, name)
	}

	initPath := path.Join(codeDir, b.layout.InitFile)
	initBody := fmt.Sprintf("require(%q)", path.Join(codeDir, b.layout.AppFolder, b.layout.InitFile))
	if err := writeBatch(ctx, u, initPath, []byte(initBody)); err != nil {
		return "", withApp(err, name)
	}
	b.logger.DebugContext(ctx, "built app unit", "app", name, "key", u.Key(), "files", len(records))
	return u.Key(), nil
}

func withApp(err error, name string) error {
	var e *Error
	if errors.As(err, &e) && e.App == "" {
		e.App = name
	}
	return err
}
