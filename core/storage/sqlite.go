package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/artpar/adminkit/core/schema"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// IDGenerator produces record ids.
type IDGenerator interface {
	New() string
}

// Clock supplies created_at and updated_at.
type Clock interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) New() string { return uuid.New().String() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithIDGenerator sets the generator used when a record has no id.
// Defaults to UUID v4.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *SQLiteStore) { s.ids = g }
}

// WithClock sets the time source for implicit timestamps.
func WithClock(c Clock) Option {
	return func(s *SQLiteStore) { s.clock = c }
}

// SQLiteStore implements Store with SQLite.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	ids   IDGenerator
	clock Clock

	// resources maps slugs to their compiled definitions
	resources map[string]schema.ResourceData
}

// NewSQLiteStore creates a new SQLite storage.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: opens its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return NewSQLiteStoreFromDB(db, opts...), nil
}

// NewSQLiteStoreFromDB creates a SQLite storage from an existing connection.
func NewSQLiteStoreFromDB(db *sql.DB, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		db:        db,
		ids:       uuidGenerator{},
		clock:     systemClock{},
		resources: make(map[string]schema.ResourceData),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now formats the clock's time the way implicit timestamps are stored.
func (s *SQLiteStore) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339)
}

// CreateTable creates the table and indexes of a resource.
func (s *SQLiteStore) CreateTable(ctx context.Context, res schema.ResourceData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, BuildCreateTableSQL(res)); err != nil {
		return fmt.Errorf("create table %s: %w", res.Table, err)
	}

	for _, indexSQL := range BuildIndexSQL(res) {
		if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	s.resources[res.Slug] = res
	return nil
}

func (s *SQLiteStore) resource(slug string) (schema.ResourceData, error) {
	s.mu.RLock()
	res, ok := s.resources[slug]
	s.mu.RUnlock()

	if !ok {
		return schema.ResourceData{}, fmt.Errorf("%w: %s", ErrUnknownResource, slug)
	}
	return res, nil
}

// Create inserts a new record. Fields absent from data take their column
// default.
func (s *SQLiteStore) Create(ctx context.Context, slug string, data map[string]any) (map[string]any, error) {
	res, err := s.resource(slug)
	if err != nil {
		return nil, err
	}

	if err := s.validateReferences(ctx, res, data); err != nil {
		return nil, err
	}

	id, ok := data["id"].(string)
	if !ok || id == "" {
		id = s.ids.New()
	}

	now := s.now()
	columns := []string{"id", "created_at", "updated_at"}
	placeholders := []string{"?", "?", "?"}
	values := []any{id, now, now}

	for _, f := range res.StoredFields() {
		val, exists := data[f.DatabaseField]
		if !exists {
			continue
		}
		columns = append(columns, f.DatabaseField)
		placeholders = append(placeholders, "?")
		values = append(values, convertValue(val, f))
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		res.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := s.db.ExecContext(ctx, insertSQL, values...); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", res.Table, constraintError(err))
	}

	return s.get(ctx, res, id)
}

// Get retrieves a record by id.
func (s *SQLiteStore) Get(ctx context.Context, slug string, id string) (map[string]any, error) {
	res, err := s.resource(slug)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, res, id)
}

func (s *SQLiteStore) get(ctx context.Context, res schema.ResourceData, id string) (map[string]any, error) {
	fields := selectFields(res)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columnList(fields), res.Table)

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id), fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, res.Slug, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", res.Slug, id, err)
	}
	return record, nil
}

// List retrieves multiple records.
func (s *SQLiteStore) List(ctx context.Context, slug string, opts ListOptions) ([]map[string]any, int64, error) {
	res, err := s.resource(slug)
	if err != nil {
		return nil, 0, err
	}

	whereClause, args, err := buildFilter(res, opts.Where, opts.Search)
	if err != nil {
		return nil, 0, err
	}

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", res.Table, whereClause)
	var count int64
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", res.Slug, err)
	}

	fields := selectFields(res)
	querySQL := fmt.Sprintf("SELECT %s FROM %s%s", columnList(fields), res.Table, whereClause)

	// Only known columns may be interpolated into ORDER BY.
	orderBy := "created_at"
	if _, ok := column(res, opts.OrderBy); ok && opts.OrderBy != "" {
		orderBy = opts.OrderBy
	}
	direction := "ASC"
	if opts.OrderDesc {
		direction = "DESC"
	}
	querySQL += fmt.Sprintf(" ORDER BY %s %s, rowid %s", orderBy, direction, direction)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	querySQL += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", res.Slug, err)
	}
	defer rows.Close()

	results := []map[string]any{}
	for rows.Next() {
		record, err := scanRecord(rows, fields)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", res.Slug, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", res.Slug, err)
	}

	return results, count, nil
}

// Count returns the number of records matching where.
func (s *SQLiteStore) Count(ctx context.Context, slug string, where schema.Where) (int64, error) {
	res, err := s.resource(slug)
	if err != nil {
		return 0, err
	}

	whereClause, args, err := buildFilter(res, where, "")
	if err != nil {
		return 0, err
	}

	var count int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", res.Table, whereClause)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", res.Slug, err)
	}
	return count, nil
}

// Update modifies an existing record. Keys that are not stored fields are
// ignored.
func (s *SQLiteStore) Update(ctx context.Context, slug string, id string, data map[string]any) (map[string]any, error) {
	res, err := s.resource(slug)
	if err != nil {
		return nil, err
	}

	if err := s.validateReferences(ctx, res, data); err != nil {
		return nil, err
	}

	var sets []string
	var values []any
	for _, f := range res.StoredFields() {
		v, ok := data[f.DatabaseField]
		if !ok {
			continue
		}
		sets = append(sets, f.DatabaseField+" = ?")
		values = append(values, convertValue(v, f))
	}

	if len(sets) == 0 {
		return s.get(ctx, res, id)
	}

	sets = append(sets, "updated_at = ?")
	values = append(values, s.now(), id)

	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", res.Table, strings.Join(sets, ", "))

	result, err := s.db.ExecContext(ctx, updateSQL, values...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", res.Slug, constraintError(err))
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, res.Slug, id)
	}

	return s.get(ctx, res, id)
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, slug string, id string) error {
	res, err := s.resource(slug)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", res.Table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", res.Slug, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, res.Slug, id)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// buildFilter combines a constraint and a search term into a WHERE clause.
func buildFilter(res schema.ResourceData, where schema.Where, search string) (string, []any, error) {
	cond, args, err := BuildWhere(res, where)
	if err != nil {
		return "", nil, err
	}

	var conds []string
	if cond != "" {
		conds = append(conds, cond)
	}

	if search = strings.TrimSpace(search); search != "" {
		var likes []string
		for _, f := range res.StoredFields() {
			if f.Searchable {
				likes = append(likes, f.DatabaseField+" LIKE ?")
				args = append(args, "%"+search+"%")
			}
		}
		if len(likes) > 0 {
			conds = append(conds, "("+strings.Join(likes, " OR ")+")")
		}
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// selectFields lists the columns read back for a record, implicit ones
// included.
func selectFields(res schema.ResourceData) []schema.FieldData {
	fields := []schema.FieldData{{Name: "id", DatabaseField: "id", Type: schema.FieldTypeText}}
	fields = append(fields, res.StoredFields()...)
	return append(fields,
		schema.FieldData{Name: "created_at", DatabaseField: "created_at", Type: schema.FieldTypeText},
		schema.FieldData{Name: "updated_at", DatabaseField: "updated_at", Type: schema.FieldTypeText},
	)
}

func columnList(fields []schema.FieldData) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.DatabaseField
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, fields []schema.FieldData) (map[string]any, error) {
	values := make([]any, len(fields))
	scanDest := make([]any, len(fields))
	for i := range values {
		scanDest[i] = &values[i]
	}

	if err := row.Scan(scanDest...); err != nil {
		return nil, err
	}

	record := make(map[string]any, len(fields))
	for i, f := range fields {
		record[f.DatabaseField] = convertFromDB(values[i], f)
	}
	return record, nil
}

// convertValue converts a Go value to a database value.
func convertValue(val any, f schema.FieldData) any {
	if val == nil {
		return nil
	}

	switch f.Type {
	case schema.FieldTypeBoolean:
		switch v := val.(type) {
		case bool:
			if v {
				return 1
			}
			return 0
		case string:
			if v == "true" || v == "1" {
				return 1
			}
			return 0
		default:
			return 0
		}
	case schema.FieldTypeDate:
		if t, ok := val.(time.Time); ok {
			return t.Format("2006-01-02")
		}
		return val
	case schema.FieldTypeTimestamp:
		if t, ok := val.(time.Time); ok {
			return t.UTC().Format(time.RFC3339)
		}
		return val
	case schema.FieldTypeBelongsTo:
		switch v := val.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	case schema.FieldTypeJSON:
		if s, ok := val.(string); ok {
			return s
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return val
	}
}

// convertFromDB converts a database value to a Go value.
func convertFromDB(val any, f schema.FieldData) any {
	if val == nil {
		return nil
	}

	if b, ok := val.([]byte); ok {
		val = string(b)
	}

	switch f.Type {
	case schema.FieldTypeBoolean:
		switch v := val.(type) {
		case int64:
			return v != 0
		case int:
			return v != 0
		default:
			return false
		}
	case schema.FieldTypeJSON:
		s, ok := val.(string)
		if !ok {
			return val
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return s
		}
		return out
	default:
		return val
	}
}

// validateReferences checks that every belongs-to value names an existing
// record of the related resource.
func (s *SQLiteStore) validateReferences(ctx context.Context, res schema.ResourceData, data map[string]any) error {
	for _, field := range res.StoredFields() {
		if field.Type != schema.FieldTypeBelongsTo {
			continue
		}

		refValue, exists := data[field.DatabaseField]
		if !exists || refValue == nil {
			continue
		}

		refID, _ := convertValue(refValue, field).(string)
		if refID == "" {
			continue
		}

		s.mu.RLock()
		refRes, ok := s.resources[field.RelatedResource]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s referenced by field %q", ErrUnknownResource, field.RelatedResource, field.DatabaseField)
		}

		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", refRes.Table)
		if err := s.db.QueryRowContext(ctx, query, refID).Scan(&count); err != nil {
			return fmt.Errorf("check reference for field %q: %w", field.DatabaseField, err)
		}

		if count == 0 {
			return fmt.Errorf("%w: %s with id %q does not exist (field: %s)", ErrInvalidReference, field.RelatedResource, refID, field.DatabaseField)
		}
	}

	return nil
}

// constraintError maps unique key violations to ErrConflict.
func constraintError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrConflict, sqliteErr.Error())
		}
	}
	return err
}
