// Package storage persists records of compiled resources. Tables are derived
// from resource data: one column per stored field, named by its database
// field, plus the implicit id, created_at and updated_at columns.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/adminkit/core/schema"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownResource is returned for a slug without a table.
	ErrUnknownResource = errors.New("resource not registered with store")

	// ErrConflict is returned when a write violates a unique
	// constraint.
	ErrConflict = errors.New("constraint violation")

	// ErrInvalidReference is returned when a belongs-to value names a record
	// that does not exist.
	ErrInvalidReference = errors.New("invalid reference")
)

// Store provides generic CRUD operations for any resource.
type Store interface {
	// CreateTable creates the table of a resource and registers it.
	CreateTable(ctx context.Context, res schema.ResourceData) error

	// Create inserts a record and returns it as stored.
	Create(ctx context.Context, slug string, data map[string]any) (map[string]any, error)

	// Get retrieves a record by id.
	Get(ctx context.Context, slug string, id string) (map[string]any, error)

	// List retrieves records matching the options and the total match count.
	List(ctx context.Context, slug string, opts ListOptions) ([]map[string]any, int64, error)

	// Count returns the number of records matching where.
	Count(ctx context.Context, slug string, where schema.Where) (int64, error)

	// Update modifies a record and returns it as stored.
	Update(ctx context.Context, slug string, id string, data map[string]any) (map[string]any, error)

	// Delete removes a record.
	Delete(ctx context.Context, slug string, id string) error

	// Close closes the storage connection.
	Close() error
}

// ListOptions configures list queries.
type ListOptions struct {
	// Limit is the maximum number of records to return.
	Limit int

	// Offset is the number of records to skip.
	Offset int

	// Where constrains the records, usually built from filters.
	Where schema.Where

	// Search matches a substring against every searchable field.
	Search string

	// OrderBy is the database field to sort by.
	OrderBy string

	// OrderDesc sorts in descending order.
	OrderDesc bool
}

// SQLType returns the column type of a field.
func SQLType(t schema.FieldType) string {
	switch t {
	case schema.FieldTypeNumber:
		return "REAL"
	case schema.FieldTypeInteger, schema.FieldTypeBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL generates CREATE TABLE SQL from a compiled resource.
func BuildCreateTableSQL(res schema.ResourceData) string {
	columns := []string{"id TEXT PRIMARY KEY"}
	var constraints []string

	for _, f := range res.StoredFields() {
		columns = append(columns, buildColumnDef(f))

		if f.Unique {
			constraints = append(constraints, fmt.Sprintf("UNIQUE(%s)", f.DatabaseField))
		}

		if f.Type == schema.FieldTypeSelect && len(f.SelectOptions) > 0 {
			values := make([]string, len(f.SelectOptions))
			for i, o := range f.SelectOptions {
				values[i] = quote(o.Value)
			}
			constraints = append(constraints, fmt.Sprintf(
				"CHECK(%s IS NULL OR %s IN (%s))",
				f.DatabaseField, f.DatabaseField, strings.Join(values, ", "),
			))
		}
	}

	columns = append(columns,
		"created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP",
		"updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP",
	)

	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		res.Table,
		strings.Join(columns, ",\n  "),
	)

	if len(constraints) > 0 {
		sql += ",\n  " + strings.Join(constraints, ",\n  ")
	}

	sql += "\n)"

	return sql
}

// buildColumnDef builds a column definition from a compiled field.
func buildColumnDef(f schema.FieldData) string {
	parts := []string{f.DatabaseField, SQLType(f.Type)}

	if !f.Nullable {
		parts = append(parts, "NOT NULL")
	}

	if f.DefaultValue != nil {
		if def := formatDefault(f.DefaultValue); def != "" {
			parts = append(parts, "DEFAULT "+def)
		}
	}

	return strings.Join(parts, " ")
}

// formatDefault formats a default value for SQL.
func formatDefault(val any) string {
	switch v := val.(type) {
	case string:
		return quote(v)
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// BuildIndexSQL generates CREATE INDEX statements for sortable and
// foreign key fields.
func BuildIndexSQL(res schema.ResourceData) []string {
	var indexes []string

	for _, f := range res.StoredFields() {
		if !f.Sortable && f.Type != schema.FieldTypeBelongsTo {
			continue
		}
		indexes = append(indexes, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			res.Table, f.DatabaseField, res.Table, f.DatabaseField,
		))
	}

	return indexes
}

// BuildWhere translates a constraint into a SQL condition and its arguments.
// Keys must be stored fields or implicit columns. Keys are emitted in sorted
// order so the same constraint always yields the same SQL.
func BuildWhere(res schema.ResourceData, where schema.Where) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		if k != schema.OpAnd {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var conds []string
	var args []any
	for _, col := range keys {
		field, ok := column(res, col)
		if !ok {
			return "", nil, fmt.Errorf("where: unknown field %q on %s", col, res.Slug)
		}

		ops, isOps := where[col].(map[string]any)
		if !isOps {
			ops = map[string]any{schema.OpEq: where[col]}
		}

		opKeys := make([]string, 0, len(ops))
		for op := range ops {
			opKeys = append(opKeys, op)
		}
		sort.Strings(opKeys)

		for _, op := range opKeys {
			cond, condArgs, err := buildCondition(col, op, ops[op], field)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			args = append(args, condArgs...)
		}
	}

	if raw, ok := where[schema.OpAnd]; ok {
		members := schema.Conjuncts(raw)
		if members == nil {
			return "", nil, fmt.Errorf("where: %s on %s must be a list of constraints", schema.OpAnd, res.Slug)
		}
		for _, member := range members {
			cond, condArgs, err := BuildWhere(res, member)
			if err != nil {
				return "", nil, err
			}
			if cond != "" {
				conds = append(conds, "("+cond+")")
				args = append(args, condArgs...)
			}
		}
	}

	return strings.Join(conds, " AND "), args, nil
}

func buildCondition(col, op string, val any, field schema.FieldData) (string, []any, error) {
	switch op {
	case schema.OpEq:
		if val == nil {
			return col + " IS NULL", nil, nil
		}
		return col + " = ?", []any{convertValue(val, field)}, nil
	case schema.OpNe:
		if val == nil {
			return col + " IS NOT NULL", nil, nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s != ?)", col, col), []any{convertValue(val, field)}, nil
	case schema.OpGt:
		return col + " > ?", []any{convertValue(val, field)}, nil
	case schema.OpGte:
		return col + " >= ?", []any{convertValue(val, field)}, nil
	case schema.OpLt:
		return col + " < ?", []any{convertValue(val, field)}, nil
	case schema.OpLte:
		return col + " <= ?", []any{convertValue(val, field)}, nil
	case schema.OpLike:
		return col + " LIKE ?", []any{fmt.Sprint(val)}, nil
	case schema.OpIn:
		list := toList(val)
		if len(list) == 0 {
			return "1 = 0", nil, nil
		}
		placeholders := make([]string, len(list))
		args := make([]any, len(list))
		for i, v := range list {
			placeholders[i] = "?"
			args[i] = convertValue(v, field)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), args, nil
	}
	return "", nil, fmt.Errorf("where: unsupported operator %q on %s", op, col)
}

func toList(val any) []any {
	switch v := val.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out
	case nil:
		return nil
	}
	return []any{val}
}

// column resolves a database field or implicit column.
func column(res schema.ResourceData, name string) (schema.FieldData, bool) {
	switch name {
	case "id", "created_at", "updated_at":
		return schema.FieldData{Name: name, DatabaseField: name, Type: schema.FieldTypeText}, true
	}
	f, ok := res.FieldByDatabaseField(name)
	if !ok || f.Virtual {
		return schema.FieldData{}, false
	}
	return f, true
}
