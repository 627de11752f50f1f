package formatter

import (
	"fmt"
	"io"

	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) Name() string        { return "yaml" }
func (f *YAMLFormatter) Description() string { return "YAML output format" }

// FormatSchema writes the schema as a YAML document.
func (f *YAMLFormatter) FormatSchema(w io.Writer, s registry.Schema, opts FormatOptions) error {
	return f.encode(w, s)
}

// FormatList writes the page as a YAML document.
func (f *YAMLFormatter) FormatList(w io.Writer, res schema.ResourceData, records []map[string]any, total int64, opts FormatOptions) error {
	cols := Columns(res, opts.Columns, false)
	data := make([]map[string]any, len(records))
	for i, r := range records {
		data[i] = project(r, cols)
	}
	return f.encode(w, map[string]any{
		"resource": res.Slug,
		"total":    total,
		"data":     data,
	})
}

// FormatRecord writes one record as a YAML mapping.
func (f *YAMLFormatter) FormatRecord(w io.Writer, res schema.ResourceData, record map[string]any, opts FormatOptions) error {
	if record == nil {
		return f.encode(w, map[string]any{"resource": res.Slug, "data": nil})
	}
	return f.encode(w, project(record, Columns(res, opts.Columns, true)))
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	return f.encode(w, map[string]any{"error": err.Error()})
}

func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return encoder.Close()
}
