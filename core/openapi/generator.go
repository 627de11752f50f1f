// Package openapi generates an OpenAPI 3.0 document for the REST surface
// served over a frozen registry: CRUD paths per resource, action paths and
// component schemas derived from field types and rules.
package openapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/adminkit/core/convention"
	"github.com/artpar/adminkit/core/schema"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"` // path, query
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	MinLength   *int               `json:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	Pattern     string             `json:"pattern,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	ReadOnly    bool               `json:"readOnly,omitempty"`
	WriteOnly   bool               `json:"writeOnly,omitempty"`
	Default     any                `json:"default,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Generator generates OpenAPI specs from compiled resources.
type Generator struct {
	resources []schema.ResourceData
	basePath  string
	info      Info
	servers   []Server
}

// NewGenerator creates a generator for resources served under basePath.
func NewGenerator(resources []schema.ResourceData, basePath string) *Generator {
	if basePath == "" {
		basePath = "/api"
	}
	return &Generator{
		resources: resources,
		basePath:  strings.TrimSuffix(basePath, "/"),
		info: Info{
			Title:       "AdminKit API",
			Version:     "1.0.0",
			Description: "Generated from the registered resources",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// Generate creates the OpenAPI specification. Resources keep registry order.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]*Schema{
				"Error": {
					Type: "object",
					Properties: map[string]*Schema{
						"error": {
							Type: "object",
							Properties: map[string]*Schema{
								"code":    {Type: "string"},
								"message": {Type: "string"},
								"details": {Type: "array", Items: &Schema{Type: "object"}},
							},
						},
					},
				},
			},
		},
		Tags: make([]Tag, 0, len(g.resources)),
	}

	spec.Paths[g.basePath+"/_schema"] = PathItem{Get: &Operation{
		Tags:        []string{"schema"},
		Summary:     "Serialized registry",
		OperationID: "getSchema",
		Responses:   map[string]Response{"200": {Description: "Resources, dashboards and permissions"}},
	}}

	for _, res := range g.resources {
		g.generateResource(spec, res)
	}

	return spec
}

// SchemaName returns the component schema name of a resource.
func SchemaName(res schema.ResourceData) string {
	return strings.ReplaceAll(convention.TitleCase(res.Name), " ", "")
}

func (g *Generator) generateResource(spec *Spec, res schema.ResourceData) {
	spec.Tags = append(spec.Tags, Tag{Name: res.Slug, Description: res.Description})

	title := SchemaName(res)
	spec.Components.Schemas[title] = g.buildRecordSchema(res)
	spec.Components.Schemas[title+"Create"] = g.buildInputSchema(res, true)
	spec.Components.Schemas[title+"Update"] = g.buildInputSchema(res, false)
	spec.Components.Schemas[title+"List"] = &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"data":    {Type: "array", Items: ref(title)},
			"total":   {Type: "integer", Description: "Total count of matching records"},
			"page":    {Type: "integer"},
			"perPage": {Type: "integer"},
		},
	}

	base := g.basePath + "/" + res.Slug
	g.addCollectionPath(spec, res, base, title)
	g.addRecordPath(spec, res, base, title)
	for _, action := range res.Actions {
		g.addActionPath(spec, res, action, base)
	}
}

// buildRecordSchema describes a stored record as returned by the API.
func (g *Generator) buildRecordSchema(res schema.ResourceData) *Schema {
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"id":         {Type: "string", Format: "uuid", ReadOnly: true},
			"created_at": {Type: "string", ReadOnly: true},
			"updated_at": {Type: "string", ReadOnly: true},
		},
	}
	for _, f := range res.StoredFields() {
		if f.Type == schema.FieldTypePassword {
			continue
		}
		s.Properties[f.DatabaseField] = FieldSchema(f, f.CreateRules())
	}
	return s
}

// buildInputSchema describes a create or update payload.
func (g *Generator) buildInputSchema(res schema.ResourceData, create bool) *Schema {
	s := &Schema{Type: "object", Properties: make(map[string]*Schema)}
	for _, f := range res.StoredFields() {
		visible := f.ShowOnUpdate
		rules := f.EditRules()
		if create {
			visible = f.ShowOnCreation
			rules = f.CreateRules()
		}
		if !visible {
			continue
		}
		s.Properties[f.DatabaseField] = FieldSchema(f, rules)
		if create && f.IsRequired() && f.DefaultValue == nil {
			s.Required = append(s.Required, f.DatabaseField)
		}
	}
	return s
}

// FieldSchema converts a field and the rules that apply to it into a JSON
// schema.
func FieldSchema(f schema.FieldData, rules []string) *Schema {
	s := &Schema{Description: f.Description, Nullable: f.Nullable, Default: f.DefaultValue}

	switch f.Type {
	case schema.FieldTypeNumber:
		s.Type = "number"
	case schema.FieldTypeInteger:
		s.Type = "integer"
	case schema.FieldTypeBoolean:
		s.Type = "boolean"
	case schema.FieldTypeDate:
		s.Type, s.Format = "string", "date"
	case schema.FieldTypeTimestamp:
		s.Type, s.Format = "string", "date-time"
	case schema.FieldTypePassword:
		s.Type, s.Format, s.WriteOnly = "string", "password", true
	case schema.FieldTypeJSON:
		s.Type = "object"
	case schema.FieldTypeSelect:
		s.Type = "string"
		for _, o := range f.SelectOptions {
			s.Enum = append(s.Enum, o.Value)
		}
	case schema.FieldTypeBelongsTo:
		s.Type = "string"
		if s.Description == "" {
			s.Description = fmt.Sprintf("Reference to %s", f.RelatedResource)
		}
	default:
		s.Type = "string"
	}

	for _, rule := range schema.ParseRules(rules...) {
		applyRule(s, rule)
	}

	return s
}

// applyRule maps a validation rule onto schema keywords.
func applyRule(s *Schema, rule schema.Rule) {
	switch rule.Kind {
	case schema.RuleEmail:
		s.Format = "email"
	case schema.RuleURL:
		s.Format = "uri"
	case schema.RuleRegex:
		s.Pattern = rule.Arg(0)
	case schema.RuleIn:
		if s.Enum == nil {
			s.Enum = append([]string(nil), rule.Args...)
		}
	case schema.RuleMin, schema.RuleMax:
		v, err := strconv.ParseFloat(rule.Arg(0), 64)
		if err != nil {
			return
		}
		if s.Type == "string" {
			n := int(v)
			if rule.Kind == schema.RuleMin {
				s.MinLength = &n
			} else {
				s.MaxLength = &n
			}
			return
		}
		if rule.Kind == schema.RuleMin {
			s.Minimum = &v
		} else {
			s.Maximum = &v
		}
	}
}

func (g *Generator) addCollectionPath(spec *Spec, res schema.ResourceData, base, title string) {
	params := []Parameter{
		{Name: "page", In: "query", Description: "Page number, starting at 1", Schema: &Schema{Type: "integer", Default: 1}},
		{Name: "perPage", In: "query", Description: fmt.Sprintf("Page size, one of %s", joinInts(res.PerPageOptions)), Schema: &Schema{Type: "integer"}},
		{Name: "search", In: "query", Description: "Substring matched against searchable fields", Schema: &Schema{Type: "string"}},
	}

	var sortable []string
	for _, f := range res.StoredFields() {
		if f.Sortable {
			sortable = append(sortable, f.DatabaseField)
		}
	}
	if len(sortable) > 0 {
		params = append(params,
			Parameter{Name: "sort", In: "query", Description: "Field to sort by", Schema: &Schema{Type: "string", Enum: sortable}},
			Parameter{Name: "direction", In: "query", Schema: &Schema{Type: "string", Enum: []string{"asc", "desc"}}},
		)
	}

	if len(res.Filters) > 0 {
		keys := make([]string, len(res.Filters))
		for i, f := range res.Filters {
			keys[i] = f.ShortName
		}
		params = append(params, Parameter{
			Name:        "filters",
			In:          "query",
			Description: "Comma separated filters: " + strings.Join(keys, ", "),
			Schema:      &Schema{Type: "string"},
		})
	}

	path := spec.Paths[base]
	path.Get = &Operation{
		Tags:        []string{res.Slug},
		Summary:     fmt.Sprintf("List %s", res.PluralLabel),
		OperationID: "list" + title,
		Parameters:  params,
		Responses: map[string]Response{
			"200": jsonResponse("Successful response", ref(title+"List")),
			"400": errorResponse("Invalid query"),
		},
	}
	path.Post = &Operation{
		Tags:        []string{res.Slug},
		Summary:     fmt.Sprintf("Create %s", res.Label),
		OperationID: "create" + title,
		RequestBody: jsonBody(ref(title + "Create")),
		Responses: map[string]Response{
			"201": jsonResponse("Record created", dataOf(title)),
			"422": errorResponse("Validation failed"),
		},
	}
	spec.Paths[base] = path
}

func (g *Generator) addRecordPath(spec *Spec, res schema.ResourceData, base, title string) {
	idParam := []Parameter{{Name: "id", In: "path", Required: true, Schema: &Schema{Type: "string"}}}

	spec.Paths[base+"/{id}"] = PathItem{
		Get: &Operation{
			Tags:        []string{res.Slug},
			Summary:     fmt.Sprintf("Get %s", res.Label),
			OperationID: "get" + title,
			Parameters:  idParam,
			Responses: map[string]Response{
				"200": jsonResponse("Successful response", dataOf(title)),
				"404": errorResponse("Record not found"),
			},
		},
		Patch: &Operation{
			Tags:        []string{res.Slug},
			Summary:     fmt.Sprintf("Update %s", res.Label),
			OperationID: "update" + title,
			Parameters:  idParam,
			RequestBody: jsonBody(ref(title + "Update")),
			Responses: map[string]Response{
				"200": jsonResponse("Record updated", dataOf(title)),
				"404": errorResponse("Record not found"),
				"422": errorResponse("Validation failed"),
			},
		},
		Delete: &Operation{
			Tags:        []string{res.Slug},
			Summary:     fmt.Sprintf("Delete %s", res.Label),
			OperationID: "delete" + title,
			Parameters:  idParam,
			Responses: map[string]Response{
				"204": {Description: "Record deleted"},
				"404": errorResponse("Record not found"),
			},
		},
	}
}

func (g *Generator) addActionPath(spec *Spec, res schema.ResourceData, action schema.ActionData, base string) {
	payload := &Schema{Type: "object", Properties: make(map[string]*Schema)}
	for _, f := range action.Fields {
		payload.Properties[f.DatabaseField] = FieldSchema(f, f.CreateRules())
	}

	spec.Paths[base+"/actions/"+action.Slug] = PathItem{Post: &Operation{
		Tags:        []string{res.Slug},
		Summary:     action.Name,
		Description: action.Description,
		OperationID: convention.CamelCase(action.Name) + SchemaName(res),
		RequestBody: jsonBody(&Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"ids":     {Type: "array", Items: &Schema{Type: "string"}},
				"payload": payload,
			},
		}),
		Responses: map[string]Response{
			"200": jsonResponse("Action result", &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"type":    {Type: "string", Enum: []string{"notify", "redirect", "update"}},
					"status":  {Type: "string"},
					"message": {Type: "string"},
					"payload": {Type: "object"},
				},
			}),
			"404": errorResponse("Action or record not found"),
		},
	}}
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func dataOf(name string) *Schema {
	return &Schema{Type: "object", Properties: map[string]*Schema{"data": ref(name)}}
}

func jsonBody(s *Schema) *RequestBody {
	return &RequestBody{Required: true, Content: map[string]MediaType{"application/json": {Schema: s}}}
}

func jsonResponse(description string, s *Schema) Response {
	return Response{Description: description, Content: map[string]MediaType{"application/json": {Schema: s}}}
}

func errorResponse(description string) Response {
	return jsonResponse(description, ref("Error"))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}
