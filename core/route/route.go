// Package route holds the routing table plugins extend. The table is owned by
// the orchestrator, mounted by the HTTP channel and frozen with the registry.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ErrFrozen is returned when routes are added after the table is frozen.
var ErrFrozen = errors.New("route table is frozen")

// Route is one HTTP endpoint contributed by a plugin.
type Route struct {
	Method  string
	Path    string
	Name    string
	Handler http.Handler
	Plugin  string // set by the orchestrator
}

// Get builds a GET route.
func Get(path string, h http.HandlerFunc) Route {
	return Route{Method: http.MethodGet, Path: path, Handler: h}
}

// Post builds a POST route.
func Post(path string, h http.HandlerFunc) Route {
	return Route{Method: http.MethodPost, Path: path, Handler: h}
}

// Key identifies the route for conflict detection. Parameter names are
// ignored: /users/{id} and /users/{userID} collide.
func (r Route) Key() string {
	return strings.ToUpper(r.Method) + " " + NormalizePath(r.Path)
}

// NormalizePath cleans a path and replaces parameter names with "{}".
func NormalizePath(path string) string {
	path = "/" + strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			parts[i] = "{}"
		}
	}
	return strings.Join(parts, "/")
}

// Conflict is a pair of routes claiming the same method and path.
type Conflict struct {
	Existing Route
	New      Route
}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s %s claimed by %q and %q", c.New.Method, c.New.Path, owner(c.Existing), owner(c.New))
}

func owner(r Route) string {
	if r.Plugin == "" {
		return "app"
	}
	return r.Plugin
}

// ConflictError represents one or more route conflicts.
type ConflictError struct {
	Conflicts []Conflict
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	var msgs []string
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("route conflicts detected:\n  - %s", strings.Join(msgs, "\n  - "))
}

// ReservedError is returned when a route claims a path under a prefix the
// serving channel owns.
type ReservedError struct {
	Route  Route
	Prefix string
}

func (e *ReservedError) Error() string {
	return fmt.Sprintf("route %s %s from %q uses reserved prefix %s", e.Route.Method, e.Route.Path, owner(e.Route), e.Prefix)
}

// Table is an append-only routing table.
type Table struct {
	mu       sync.RWMutex
	routes   []Route
	keys     map[string]int
	reserved []string
	frozen   bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{keys: make(map[string]int)}
}

// Add appends routes. Either all routes are added or, on conflict or invalid
// route, none are.
func (t *Table) Add(routes ...Route) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return ErrFrozen
	}

	var conflicts []Conflict
	batch := make(map[string]Route, len(routes))
	for _, r := range routes {
		if r.Method == "" || r.Path == "" || r.Handler == nil {
			return fmt.Errorf("route %q %q: method, path and handler are required", r.Method, r.Path)
		}
		if prefix, ok := reservedBy(t.reserved, r.Path); ok {
			return &ReservedError{Route: r, Prefix: prefix}
		}
		key := r.Key()
		if i, ok := t.keys[key]; ok {
			conflicts = append(conflicts, Conflict{Existing: t.routes[i], New: r})
			continue
		}
		if prev, ok := batch[key]; ok {
			conflicts = append(conflicts, Conflict{Existing: prev, New: r})
			continue
		}
		batch[key] = r
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}

	for _, r := range routes {
		r.Method = strings.ToUpper(r.Method)
		t.keys[r.Key()] = len(t.routes)
		t.routes = append(t.routes, r)
	}
	return nil
}

// Reserve rejects later routes at or under any of prefixes. Call it before
// plugins run.
func (t *Table) Reserve(prefixes ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range prefixes {
		t.reserved = append(t.reserved, NormalizePath(p))
	}
}

// Reserved returns the reserved prefix covering path, if any.
func (t *Table) Reserved(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return reservedBy(t.reserved, path)
}

// reservedBy returns the first of prefixes that path equals or falls under.
func reservedBy(prefixes []string, path string) (string, bool) {
	path = NormalizePath(path)
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix, true
		}
	}
	return "", false
}

// Freeze rejects further additions.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Frozen reports whether Freeze was called.
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Routes returns the routes in insertion order.
func (t *Table) Routes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Route(nil), t.routes...)
}

// Match reports whether a route claims method and path.
func (t *Table) Match(method, path string) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i, ok := t.keys[strings.ToUpper(method)+" "+NormalizePath(path)]; ok {
		return t.routes[i], true
	}
	for _, r := range t.routes {
		if strings.EqualFold(r.Method, method) && matchPattern(NormalizePath(r.Path), NormalizePath(path)) {
			return r, true
		}
	}
	return Route{}, false
}

// matchPattern checks if a path matches a pattern with {} placeholders.
func matchPattern(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, part := range patternParts {
		if part == "{}" {
			continue // Parameter matches anything
		}
		if part != pathParts[i] {
			return false
		}
	}

	return true
}
