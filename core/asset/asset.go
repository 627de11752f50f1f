// Package asset keeps the scripts and styles plugins register for the
// dashboard.
package asset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// Kind distinguishes scripts from styles.
type Kind string

const (
	KindScript Kind = "script"
	KindStyle  Kind = "style"
)

// Asset is a static file served under its name.
type Asset struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Path   string `json:"-"`
	Plugin string `json:"plugin,omitempty"`
}

// ContentType returns the MIME type served for the asset.
func (a Asset) ContentType() string {
	if a.Kind == KindStyle {
		return "text/css; charset=utf-8"
	}
	return "application/javascript; charset=utf-8"
}

// ErrFrozen is returned when assets are added after the manifest is frozen.
var ErrFrozen = errors.New("asset manifest is frozen")

// ErrRelativePath is returned when an asset path is not absolute.
var ErrRelativePath = errors.New("asset path must be absolute")

// DuplicateError is returned when two assets share a name.
type DuplicateError struct {
	Name     string
	Plugin   string
	Existing string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("asset %q of %q already registered by %q", e.Name, e.Plugin, e.Existing)
}

// Manifest is the set of registered assets. Registration order is kept.
type Manifest struct {
	mu     sync.RWMutex
	assets []Asset
	byName map[string]int
	frozen bool
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{byName: make(map[string]int)}
}

// Script registers a script.
func (m *Manifest) Script(plugin, name, path string) error {
	return m.add(Asset{Name: name, Kind: KindScript, Path: path, Plugin: plugin})
}

// Style registers a stylesheet.
func (m *Manifest) Style(plugin, name, path string) error {
	return m.add(Asset{Name: name, Kind: KindStyle, Path: path, Plugin: plugin})
}

func (m *Manifest) add(a Asset) error {
	if a.Name == "" {
		return errors.New("asset name is required")
	}
	if !filepath.IsAbs(a.Path) {
		return fmt.Errorf("asset %q: %w", a.Name, ErrRelativePath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return fmt.Errorf("asset %q: %w", a.Name, ErrFrozen)
	}
	if i, ok := m.byName[a.Name]; ok {
		return &DuplicateError{Name: a.Name, Plugin: a.Plugin, Existing: m.assets[i].Plugin}
	}
	m.byName[a.Name] = len(m.assets)
	m.assets = append(m.assets, a)
	return nil
}

// Freeze rejects further additions.
func (m *Manifest) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (m *Manifest) Frozen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frozen
}

// Scripts returns the scripts in registration order.
func (m *Manifest) Scripts() []Asset { return m.filter(KindScript) }

// Styles returns the styles in registration order.
func (m *Manifest) Styles() []Asset { return m.filter(KindStyle) }

// All returns every asset in registration order.
func (m *Manifest) All() []Asset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Asset(nil), m.assets...)
}

func (m *Manifest) filter(kind Kind) []Asset {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Asset
	for _, a := range m.assets {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Lookup returns the asset registered under name.
func (m *Manifest) Lookup(name string) (Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byName[name]
	if !ok {
		return Asset{}, false
	}
	return m.assets[i], true
}
