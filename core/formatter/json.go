package formatter

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/validation"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Name() string        { return "json" }
func (f *JSONFormatter) Description() string { return "JSON output format" }

// FormatSchema writes the schema as a JSON document.
func (f *JSONFormatter) FormatSchema(w io.Writer, s registry.Schema, opts FormatOptions) error {
	return f.encode(w, s, opts.Compact)
}

// FormatList writes {resource, total, count, data}.
func (f *JSONFormatter) FormatList(w io.Writer, res schema.ResourceData, records []map[string]any, total int64, opts FormatOptions) error {
	cols := Columns(res, opts.Columns, false)
	data := make([]map[string]any, len(records))
	for i, r := range records {
		data[i] = project(r, cols)
	}
	return f.encode(w, map[string]any{
		"resource": res.Slug,
		"total":    total,
		"count":    len(data),
		"data":     data,
	}, opts.Compact)
}

// FormatRecord writes {resource, data}.
func (f *JSONFormatter) FormatRecord(w io.Writer, res schema.ResourceData, record map[string]any, opts FormatOptions) error {
	var data map[string]any
	if record != nil {
		data = project(record, Columns(res, opts.Columns, true))
	}
	return f.encode(w, map[string]any{"resource": res.Slug, "data": data}, opts.Compact)
}

// FormatError formats an error as JSON. Validation failures keep their
// per-field detail.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{"error": err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		output["details"] = verr.Errors
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}
