package route

import (
	"errors"
	"net/http"
	"testing"
)

func noop(http.ResponseWriter, *http.Request) {}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/users/{id}":       "/users/{}",
		"users/{userID}/":   "/users/{}",
		"/":                 "/",
		"/a/{x}/b/{y}":      "/a/{}/b/{}",
		"/assets/style.css": "/assets/style.css",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTable_Add(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Add(Get("/hello", noop), Post("/auth/register", noop)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(tbl.Routes()) != 2 {
		t.Errorf("Routes() = %d, want 2", len(tbl.Routes()))
	}

	// Same path, different method is fine.
	if err := tbl.Add(Get("/auth/register", noop)); err != nil {
		t.Errorf("Add() error = %v", err)
	}
	// Lower-case method is normalized.
	if err := tbl.Add(Route{Method: "delete", Path: "/hello", Handler: http.HandlerFunc(noop)}); err != nil {
		t.Fatal(err)
	}
	if r, ok := tbl.Match("DELETE", "/hello"); !ok || r.Method != http.MethodDelete {
		t.Errorf("Match(DELETE /hello) = %+v, %v", r, ok)
	}
}

func TestTable_Add_Conflicts(t *testing.T) {
	tbl := NewTable()
	first := Get("/users/{id}", noop)
	first.Plugin = "auth"
	if err := tbl.Add(first); err != nil {
		t.Fatal(err)
	}

	second := Get("/users/{userID}", noop)
	second.Plugin = "cms"
	err := tbl.Add(Get("/fresh", noop), second)

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Add() error = %v, want ConflictError", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].Existing.Plugin != "auth" {
		t.Errorf("Conflicts = %+v", conflict.Conflicts)
	}
	if _, ok := tbl.Match(http.MethodGet, "/fresh"); ok {
		t.Error("conflicting batch should add nothing")
	}

	if err := tbl.Add(Get("/dup", noop), Get("/dup/", noop)); !errors.As(err, &conflict) {
		t.Errorf("in-batch duplicate error = %v", err)
	}
}

func TestTable_Add_Invalid(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Add(Route{Method: http.MethodGet, Path: "/x"}); err == nil {
		t.Error("route without handler should be rejected")
	}
}

func TestTable_Freeze(t *testing.T) {
	tbl := NewTable()
	tbl.Freeze()
	if !tbl.Frozen() {
		t.Error("Frozen() = false")
	}
	if err := tbl.Add(Get("/late", noop)); !errors.Is(err, ErrFrozen) {
		t.Errorf("Add() after Freeze error = %v, want ErrFrozen", err)
	}
}

func TestTable_Match(t *testing.T) {
	tbl := NewTable()
	_ = tbl.Add(Get("/posts/{slug}/comments", noop))

	if _, ok := tbl.Match(http.MethodGet, "/posts/hello/comments"); !ok {
		t.Error("parameterized path should match")
	}
	if _, ok := tbl.Match(http.MethodPost, "/posts/hello/comments"); ok {
		t.Error("method must match")
	}
	if _, ok := tbl.Match(http.MethodGet, "/posts/hello"); ok {
		t.Error("segment count must match")
	}
}

func TestTable_Reserve(t *testing.T) {
	table := NewTable()
	table.Reserve("/api", "metrics/")

	tests := []struct {
		path   string
		prefix string
	}{
		{"/api", "/api"},
		{"/api/posts/{id}", "/api"},
		{"/metrics", "/metrics"},
		{"/apis", ""},
		{"/cms/roles", ""},
	}
	for _, tt := range tests {
		r := Get(tt.path, noop)
		r.Plugin = "rogue"
		err := table.Add(r)

		var rerr *ReservedError
		if tt.prefix == "" {
			if err != nil {
				t.Errorf("Add(%s) error = %v", tt.path, err)
			}
			continue
		}
		if !errors.As(err, &rerr) || rerr.Prefix != tt.prefix || rerr.Route.Plugin != "rogue" {
			t.Errorf("Add(%s) error = %v, want reserved by %s", tt.path, err, tt.prefix)
		}
	}

	// a rejected batch adds nothing
	if err := table.Add(Get("/ok", noop), Get("/api/x", noop)); err == nil {
		t.Fatal("batch with a reserved path should fail")
	}
	if _, ok := table.Match(http.MethodGet, "/ok"); ok {
		t.Error("route from a rejected batch was added")
	}
}
