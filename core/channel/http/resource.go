package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/artpar/adminkit/core/validation"
	"github.com/go-chi/chi/v5"
)

// Query parameters the list endpoint interprets itself. Every other parameter
// is passed to filters as an argument.
var listParams = map[string]bool{
	"page":      true,
	"perPage":   true,
	"search":    true,
	"sort":      true,
	"direction": true,
	"filters":   true,
}

// actionRequest is the body of an action call.
type actionRequest struct {
	IDs     []string       `json:"ids"`
	Payload map[string]any `json:"payload"`
}

// mountResource registers the CRUD and action routes of one resource.
func (c *Channel) mountResource(r chi.Router, res schema.ResourceData) {
	r.Route("/"+res.Slug, func(r chi.Router) {
		r.Get("/", c.handleList(res))
		r.Post("/", c.handleCreate(res))
		r.Get("/{id}", c.handleGet(res))
		r.Patch("/{id}", c.handleUpdate(res))
		r.Put("/{id}", c.handleUpdate(res))
		r.Delete("/{id}", c.handleDelete(res))
		r.Post("/actions/{action}", c.handleAction(res))
	})
}

func (c *Channel) handleList(res schema.ResourceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, perPage, err := pagination(res, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", err.Error(), nil)
			return
		}

		where, err := c.filterWhere(r.Context(), res, q, schema.OperationIndex, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
			return
		}

		records, total, err := c.store.List(r.Context(), res.Slug, storage.ListOptions{
			Limit:     perPage,
			Offset:    (page - 1) * perPage,
			Where:     where,
			Search:    q.Get("search"),
			OrderBy:   q.Get("sort"),
			OrderDesc: strings.EqualFold(q.Get("direction"), "desc"),
		})
		c.observe(res.Slug, "list", err)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ListResponse{
			Data:    presentAll(res, records),
			Total:   total,
			Page:    page,
			PerPage: perPage,
		})
	}
}

func (c *Channel) handleCreate(res schema.ResourceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := decodeBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
			return
		}
		payload = normalize(payload)
		if payload == nil {
			payload = map[string]any{}
		}

		if err := validation.ValidateCreate(res, payload).Err(); err != nil {
			c.observe(res.Slug, "create", err)
			writeStoreError(w, err)
			return
		}

		data, err := c.prepare(res, payload)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		record, err := c.store.Create(r.Context(), res.Slug, data)
		c.observe(res.Slug, "create", err)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		c.emit(r.Context(), res.Slug+"::created", record)
		writeJSON(w, http.StatusCreated, RecordResponse{Data: present(res, record)})
	}
}

func (c *Channel) handleGet(res schema.ResourceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := c.find(r, res, schema.OperationFetch)
		c.observe(res.Slug, "get", err)
		if err != nil {
			c.writeFindError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, RecordResponse{Data: present(res, record)})
	}
}

func (c *Channel) handleUpdate(res schema.ResourceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := decodeBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
			return
		}
		payload = normalize(payload)
		if payload == nil {
			payload = map[string]any{}
		}

		if _, err := c.find(r, res, schema.OperationUpdate); err != nil {
			c.observe(res.Slug, "update", err)
			c.writeFindError(w, err)
			return
		}

		if err := validation.ValidateUpdate(res, payload).Err(); err != nil {
			c.observe(res.Slug, "update", err)
			writeStoreError(w, err)
			return
		}

		data, err := c.prepare(res, payload)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		record, err := c.store.Update(r.Context(), res.Slug, chi.URLParam(r, "id"), data)
		c.observe(res.Slug, "update", err)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		c.emit(r.Context(), res.Slug+"::updated", record)
		writeJSON(w, http.StatusOK, RecordResponse{Data: present(res, record)})
	}
}

func (c *Channel) handleDelete(res schema.ResourceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := c.find(r, res, schema.OperationDelete)
		if err != nil {
			c.observe(res.Slug, "delete", err)
			c.writeFindError(w, err)
			return
		}

		err = c.store.Delete(r.Context(), res.Slug, chi.URLParam(r, "id"))
		c.observe(res.Slug, "delete", err)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		c.emit(r.Context(), res.Slug+"::deleted", record)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *Channel) handleAction(res schema.ResourceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, ok := res.Action(chi.URLParam(r, "action"))
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("resource %s has no action %q", res.Slug, chi.URLParam(r, "action")), nil)
			return
		}

		var req actionRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
			return
		}

		where, err := c.filterWhere(r.Context(), res, r.URL.Query(), schema.OperationAction, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
			return
		}

		records := make([]map[string]any, 0, len(req.IDs))
		for _, id := range req.IDs {
			record, err := c.lookup(r.Context(), res, id, where)
			if err != nil {
				c.writeFindError(w, err)
				return
			}
			records = append(records, record)
		}

		result, err := action.Run(r.Context(), schema.ActionRequest{
			Resource: res.Slug,
			Records:  records,
			Payload:  normalize(req.Payload),
		})
		c.observe(res.Slug, "action:"+action.Slug, err)
		if errors.Is(err, schema.ErrNoHandler) {
			writeError(w, http.StatusNotImplemented, "not_implemented", err.Error(), nil)
			return
		}
		if err != nil {
			c.logger.Error().Err(err).Str("resource", res.Slug).Str("action", action.Slug).Msg("action failed")
			writeStoreError(w, err)
			return
		}

		status := result.Status
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, result)
	}
}

// find loads the record named by the id URL parameter, scoped by the filters
// the client selected or, failing that, the default filters.
func (c *Channel) find(r *http.Request, res schema.ResourceData, op schema.Operation) (map[string]any, error) {
	where, err := c.filterWhere(r.Context(), res, r.URL.Query(), op, true)
	if err != nil {
		return nil, &filterError{err: err}
	}
	return c.lookup(r.Context(), res, chi.URLParam(r, "id"), where)
}

// lookup fetches a record by id. A non-empty where must also match.
func (c *Channel) lookup(ctx context.Context, res schema.ResourceData, id string, where schema.Where) (map[string]any, error) {
	if len(where) == 0 {
		return c.store.Get(ctx, res.Slug, id)
	}
	records, _, err := c.store.List(ctx, res.Slug, storage.ListOptions{
		Limit: 1,
		Where: schema.And(where, schema.Eq("id", id)),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %s", storage.ErrNotFound, res.Slug, id)
	}
	return records[0], nil
}

type filterError struct{ err error }

func (e *filterError) Error() string { return e.err.Error() }
func (e *filterError) Unwrap() error { return e.err }

func (c *Channel) writeFindError(w http.ResponseWriter, err error) {
	var ferr *filterError
	if errors.As(err, &ferr) {
		writeError(w, http.StatusBadRequest, "invalid_filter", ferr.Error(), nil)
		return
	}
	writeStoreError(w, err)
}

// filterWhere resolves the filters query parameter. Keys match a filter's
// short name, slug or name. When the client selects none and defaults is
// set, the resource's default filters apply.
func (c *Channel) filterWhere(ctx context.Context, res schema.ResourceData, q url.Values, op schema.Operation, defaults bool) (schema.Where, error) {
	var selected []schema.FilterData
	for _, key := range strings.Split(q.Get("filters"), ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		f, ok := res.Filter(key)
		if !ok {
			return nil, fmt.Errorf("resource %s has no filter %q", res.Slug, key)
		}
		selected = append(selected, f)
	}
	if len(selected) == 0 && defaults {
		selected = res.DefaultFilters()
	}
	if len(selected) == 0 {
		return nil, nil
	}

	args := schema.Args{}
	for key, values := range q {
		if !listParams[key] && len(values) > 0 {
			args[key] = values[0]
		}
	}

	parts := make([]schema.Where, 0, len(selected))
	for _, f := range selected {
		if w := f.Apply(ctx, args, op); len(w) > 0 {
			parts = append(parts, w)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return schema.And(parts...), nil
}

// pagination reads page and perPage. perPage must be one of the resource's
// options and defaults to the first.
func pagination(res schema.ResourceData, q url.Values) (page, perPage int, err error) {
	page = 1
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
	}

	if len(res.PerPageOptions) > 0 {
		perPage = res.PerPageOptions[0]
	} else {
		perPage = 25
	}
	if v := q.Get("perPage"); v != "" {
		perPage, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("perPage must be an integer")
		}
		if !allowedPerPage(res.PerPageOptions, perPage) {
			return 0, 0, fmt.Errorf("perPage must be one of %v", res.PerPageOptions)
		}
	}
	return page, perPage, nil
}

func allowedPerPage(options []int, n int) bool {
	for _, o := range options {
		if o == n {
			return true
		}
	}
	return false
}

// prepare drops confirmation keys and hashes password fields.
func (c *Channel) prepare(res schema.ResourceData, payload map[string]any) (map[string]any, error) {
	data := stripConfirmations(payload)
	if c.hasher == nil {
		return data, nil
	}
	for _, f := range res.StoredFields() {
		if f.Type != schema.FieldTypePassword {
			continue
		}
		plain, ok := data[f.DatabaseField].(string)
		if !ok || plain == "" {
			continue
		}
		hashed, err := c.hasher.Hash(plain)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", f.DatabaseField, err)
		}
		data[f.DatabaseField] = hashed
	}
	return data, nil
}

// emit publishes a CRUD event. Listener failures are logged by the bus and
// do not fail the request.
func (c *Channel) emit(ctx context.Context, name string, record map[string]any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(ctx, name, record); err != nil {
		c.logger.Warn().Err(err).Str("event", name).Msg("event listeners failed")
	}
}

func (c *Channel) observe(resource, operation string, err error) {
	if c.observer != nil {
		c.observer.ObserveRecord(resource, operation, err)
	}
}
