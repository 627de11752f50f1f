package asset

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest()

	if err := m.Script("cms", "cms.js", filepath.Join(dir, "cms.js")); err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if err := m.Style("cms", "cms.css", filepath.Join(dir, "cms.css")); err != nil {
		t.Fatalf("Style() error = %v", err)
	}
	if err := m.Script("charts", "charts.js", filepath.Join(dir, "charts.js")); err != nil {
		t.Fatal(err)
	}

	if got := m.Scripts(); len(got) != 2 || got[0].Name != "cms.js" || got[1].Name != "charts.js" {
		t.Errorf("Scripts() = %+v", got)
	}
	if got := m.Styles(); len(got) != 1 || got[0].Name != "cms.css" {
		t.Errorf("Styles() = %+v", got)
	}
	if len(m.All()) != 3 {
		t.Errorf("All() = %d, want 3", len(m.All()))
	}

	a, ok := m.Lookup("cms.css")
	if !ok {
		t.Fatal("Lookup(cms.css) not found")
	}
	if a.ContentType() != "text/css; charset=utf-8" || a.Plugin != "cms" {
		t.Errorf("asset = %+v", a)
	}
	if _, ok := m.Lookup("missing.js"); ok {
		t.Error("Lookup(missing.js) found")
	}
}

func TestManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest()
	_ = m.Script("cms", "app.js", filepath.Join(dir, "app.js"))

	err := m.Style("theme", "app.js", filepath.Join(dir, "other.css"))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("error = %v, want DuplicateError", err)
	}
	if dup.Existing != "cms" || dup.Plugin != "theme" {
		t.Errorf("DuplicateError = %+v", dup)
	}

	if err := m.Script("cms", "rel.js", "static/rel.js"); !errors.Is(err, ErrRelativePath) {
		t.Errorf("relative path error = %v", err)
	}
	if err := m.Script("cms", "", filepath.Join(dir, "x.js")); err == nil {
		t.Error("empty name should fail")
	}
}

func TestManifest_Freeze(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest()
	if err := m.Style("cms", "cms.css", filepath.Join(dir, "cms.css")); err != nil {
		t.Fatal(err)
	}

	m.Freeze()
	if !m.Frozen() {
		t.Error("Frozen() = false after Freeze")
	}
	if err := m.Script("cms", "late.js", filepath.Join(dir, "late.js")); !errors.Is(err, ErrFrozen) {
		t.Errorf("Script() after Freeze error = %v, want ErrFrozen", err)
	}
	if _, ok := m.Lookup("cms.css"); !ok {
		t.Error("assets registered before Freeze should stay served")
	}
}
