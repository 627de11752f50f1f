package formatter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/validation"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

func (f *TableFormatter) Name() string        { return "table" }
func (f *TableFormatter) Description() string { return "Aligned text table output" }

// FormatSchema writes a resource overview, the fields of every resource,
// dashboards and the permission set.
func (f *TableFormatter) FormatSchema(w io.Writer, s registry.Schema, opts FormatOptions) error {
	if len(s.Resources) == 0 {
		fmt.Fprintln(w, "No resources registered.")
	} else {
		rows := make([][]string, len(s.Resources))
		for i, r := range s.Resources {
			rows[i] = []string{r.Slug, r.Label, r.Table, strconv.Itoa(len(r.Fields)), strconv.Itoa(len(r.Filters)), strconv.Itoa(len(r.Actions))}
		}
		if err := f.table(w, []string{"slug", "label", "table", "fields", "filters", "actions"}, rows, opts); err != nil {
			return err
		}
	}

	for _, r := range s.Resources {
		fmt.Fprintf(w, "\n%s (%s)\n", r.Label, r.Slug)
		rows := make([][]string, len(r.Fields))
		for i, fd := range r.Fields {
			rows[i] = []string{fd.Name, string(fd.Type), column(fd), strings.Join(fd.Rules, "|"), visibility(fd)}
		}
		if err := f.table(w, []string{"field", "type", "column", "rules", "visible"}, rows, opts); err != nil {
			return err
		}
	}

	if len(s.Dashboards) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, len(s.Dashboards))
		for i, d := range s.Dashboards {
			cards := make([]string, len(d.Cards))
			for j, c := range d.Cards {
				cards[j] = c.Slug
			}
			rows[i] = []string{d.Slug, d.Name, strings.Join(cards, ",")}
		}
		if err := f.table(w, []string{"dashboard", "name", "cards"}, rows, opts); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nPermissions: %s\n", f.formatValue(strings.Join(s.Permissions, ", "), opts.MaxWidth))
	return nil
}

// FormatList writes records as a table followed by a count line.
func (f *TableFormatter) FormatList(w io.Writer, res schema.ResourceData, records []map[string]any, total int64, opts FormatOptions) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	cols := Columns(res, opts.Columns, false)
	rows := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = f.formatValue(r[c], opts.MaxWidth)
		}
		rows[i] = row
	}
	if err := f.table(w, cols, rows, FormatOptions{NoHeader: opts.NoHeader}); err != nil {
		return err
	}

	if !opts.NoHeader {
		fmt.Fprintf(w, "\n%d of %d %s\n", len(records), total, res.PluralLabel)
	}
	return nil
}

// FormatRecord writes a record as label: value lines.
func (f *TableFormatter) FormatRecord(w io.Writer, res schema.ResourceData, record map[string]any, opts FormatOptions) error {
	if record == nil {
		fmt.Fprintln(w, "Record not found.")
		return nil
	}

	labels := map[string]string{"id": "ID"}
	for _, fd := range res.Fields {
		labels[fd.DatabaseField] = fd.Name
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range Columns(res, opts.Columns, true) {
		label, ok := labels[c]
		if !ok {
			label = c
		}
		// No truncation for detail view
		fmt.Fprintf(tw, "%s:\t%s\n", label, f.formatValue(record[c], 0))
	}
	return tw.Flush()
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	fmt.Fprintf(w, "Error: %s\n", err.Error())
	var verr *validation.Error
	if errors.As(err, &verr) {
		for _, fe := range verr.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", fe.Field, fe.Message)
		}
	}
	return nil
}

func (f *TableFormatter) table(w io.Writer, headers []string, rows [][]string, opts FormatOptions) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !opts.NoHeader {
		upper := make([]string, len(headers))
		for i, h := range headers {
			upper[i] = strings.ToUpper(h)
		}
		fmt.Fprintln(tw, strings.Join(upper, "\t"))
	}

	for _, row := range rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = f.formatValue(v, opts.MaxWidth)
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}

	return tw.Flush()
}

func column(f schema.FieldData) string {
	if f.Virtual {
		return "(virtual)"
	}
	return f.DatabaseField
}

func visibility(f schema.FieldData) string {
	var out []string
	for _, ctx := range []struct {
		name string
		on   bool
	}{
		{"index", f.ShowOnIndex},
		{"detail", f.ShowOnDetail},
		{"create", f.ShowOnCreation},
		{"update", f.ShowOnUpdate},
	} {
		if ctx.on {
			out = append(out, ctx.name)
		}
	}
	return strings.Join(out, ",")
}

// formatValue formats a value for display.
func (f *TableFormatter) formatValue(val any, maxWidth int) string {
	var str string
	switch v := val.(type) {
	case nil:
		return "-"
	case string:
		str = v
	case bool:
		if v {
			str = "yes"
		} else {
			str = "no"
		}
	default:
		b, _ := json.Marshal(v)
		str = string(b)
	}

	if str == "" {
		return "-"
	}

	if maxWidth > 3 && len(str) > maxWidth {
		str = str[:maxWidth-3] + "..."
	}

	return str
}
