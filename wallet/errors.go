package wallet

import (
	"errors"
	"strings"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindTemplateRead  Kind = "TemplateRead"
	KindManifestParse Kind = "ManifestParse"
	KindUnitCreate    Kind = "UnitCreate"
	KindUnitLoad      Kind = "UnitLoad"
	KindMount         Kind = "Mount"
	KindBatchBegin    Kind = "BatchBegin"
	KindWrite         Kind = "Write"
	KindCommit        Kind = "Commit"
	KindCancel        Kind = "Cancel"
	KindInstall       Kind = "Install"
	KindRebuild       Kind = "Rebuild"
	KindConfig        Kind = "Config"
)

// Error is the builder's structured error type.
//
// Stage is intended for humans; branch on Kind. A failed commit keeps its
// own cause and reports the cancel attempt that followed in Cancel.
type Error struct {
	Kind  Kind
	Stage string
	App   string
	Path  string
	Cause error
	// Cancel is set when a batch had to be cancelled after the failure and
	// the cancel itself failed.
	Cancel error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("wallet: ")
	e.write(&b, "")
	return b.String()
}

// write renders e without the package prefix. A nested *Error cause is
// rendered inline, and an app already named by the caller is not repeated.
func (e *Error) write(b *strings.Builder, app string) {
	b.WriteString(e.Stage)
	if e.App != "" && e.App != app {
		b.WriteString(" for app ")
		b.WriteString(e.App)
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		if inner, ok := e.Cause.(*Error); ok && inner != nil {
			if e.App != "" {
				app = e.App
			}
			inner.write(b, app)
		} else {
			b.WriteString(e.Cause.Error())
		}
	}
	if e.Cancel != nil {
		b.WriteString(" (")
		b.WriteString(e.Cancel.Error())
		b.WriteString(")")
	}
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	var out []error
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	if e.Cancel != nil {
		out = append(out, e.Cancel)
	}
	return out
}

func wrapError(kind Kind, stage string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Cause: cause}
}

// IsKind reports whether err is, or anywhere wraps, a *Error of kind.
func IsKind(err error, kind Kind) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		if e.Kind == kind {
			return true
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(u.Unwrap(), kind)
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err, or "".
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
