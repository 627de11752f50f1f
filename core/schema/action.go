package schema

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/artpar/adminkit/core/convention"
)

// ErrNoHandler is returned when an action without a handler is run.
var ErrNoHandler = errors.New("action has no handler")

// ActionRequest is the input of an action handler: the selected records and
// any form payload.
type ActionRequest struct {
	Resource string           `json:"resource"`
	Records  []map[string]any `json:"records"`
	Payload  map[string]any   `json:"payload,omitempty"`
}

// Result types tell the dashboard how to react.
const (
	ResultNotify   = "notify"
	ResultRedirect = "redirect"
	ResultUpdate   = "update"
)

// ActionResult is the status and payload returned by an action handler.
type ActionResult struct {
	Status  int    `json:"status"`
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Notify returns a 200 result displaying message.
func Notify(message string) ActionResult {
	return ActionResult{Status: http.StatusOK, Type: ResultNotify, Message: message}
}

// Redirect returns a result sending the client to url.
func Redirect(url string) ActionResult {
	return ActionResult{Status: http.StatusOK, Type: ResultRedirect, Payload: url}
}

// UpdateValues returns a result carrying refreshed records.
func UpdateValues(records []map[string]any) ActionResult {
	return ActionResult{Status: http.StatusOK, Type: ResultUpdate, Payload: records}
}

// ActionHandler runs an action against a selected record set.
type ActionHandler func(ctx context.Context, req ActionRequest) (ActionResult, error)

// ActionSpec builds a custom operation on a resource.
// CRUD operations are implicit and never declared here.
type ActionSpec struct {
	name           string
	confirmText    string
	destructive    bool
	showOnIndex    bool
	showOnDetail   bool
	showOnTableRow bool
	fields         []*FieldSpec
	handler        ActionHandler
	description    string
}

// ActionData is the compiled action.
type ActionData struct {
	Name           string        `json:"name" yaml:"name"`
	Slug           string        `json:"slug" yaml:"slug"`
	ConfirmText    string        `json:"confirmText,omitempty" yaml:"confirmText,omitempty"`
	Destructive    bool          `json:"destructive" yaml:"destructive"`
	ShowOnIndex    bool          `json:"showOnIndex" yaml:"showOnIndex"`
	ShowOnDetail   bool          `json:"showOnDetail" yaml:"showOnDetail"`
	ShowOnTableRow bool          `json:"showOnTableRow" yaml:"showOnTableRow"`
	Fields         []FieldData   `json:"fields" yaml:"fields"`
	Description    string        `json:"description,omitempty" yaml:"description,omitempty"`
	Handler        ActionHandler `json:"-" yaml:"-"`
}

// Action starts an action shown on index and detail pages.
func Action(name string) *ActionSpec {
	return &ActionSpec{name: strings.TrimSpace(name), showOnIndex: true, showOnDetail: true}
}

// Name returns the display name.
func (a *ActionSpec) Name() string { return a.name }

func (a *ActionSpec) ConfirmText(text string) *ActionSpec { a.confirmText = text; return a }
func (a *ActionSpec) Destructive() *ActionSpec            { a.destructive = true; return a }
func (a *ActionSpec) HideOnIndex() *ActionSpec            { a.showOnIndex = false; return a }
func (a *ActionSpec) HideOnDetail() *ActionSpec           { a.showOnDetail = false; return a }
func (a *ActionSpec) ShowOnTableRow() *ActionSpec         { a.showOnTableRow = true; return a }
func (a *ActionSpec) Description(text string) *ActionSpec { a.description = text; return a }

// Fields declares the form fields collected before the action runs.
func (a *ActionSpec) Fields(fields ...*FieldSpec) *ActionSpec {
	a.fields = append(a.fields, fields...)
	return a
}

// Handler sets the function invoked when the action runs.
func (a *ActionSpec) Handler(fn ActionHandler) *ActionSpec { a.handler = fn; return a }

func (a *ActionSpec) compile(resource string) (ActionData, error) {
	if a.name == "" {
		return ActionData{}, &InvalidFieldError{Resource: resource, Field: "action", Reason: ErrEmptyName.Error()}
	}
	fields := make([]FieldData, 0, len(a.fields))
	for _, f := range a.fields {
		if err := f.validate(resource); err != nil {
			return ActionData{}, err
		}
		fields = append(fields, f.data())
	}
	return ActionData{
		Name:           a.name,
		Slug:           convention.ParamCase(a.name),
		ConfirmText:    a.confirmText,
		Destructive:    a.destructive,
		ShowOnIndex:    a.showOnIndex,
		ShowOnDetail:   a.showOnDetail,
		ShowOnTableRow: a.showOnTableRow,
		Fields:         fields,
		Description:    a.description,
		Handler:        a.handler,
	}, nil
}

// Run invokes the handler.
func (a ActionData) Run(ctx context.Context, req ActionRequest) (ActionResult, error) {
	if a.Handler == nil {
		return ActionResult{}, ErrNoHandler
	}
	return a.Handler(ctx, req)
}
