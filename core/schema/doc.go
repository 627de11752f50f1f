/*
Package schema defines the builders for declarative resource definitions and the
immutable data they compile to.

A resource is declared once, by display name, and compiled into a snapshot that
every presentation layer (REST, dashboard, OpenAPI, CLI) reads. Builders are
mutable until the owning registry freezes; compiled data is never mutated.

# Resource Definition

	post := schema.Resource("Post").
		Fields(
			schema.Text("Title").Rules("required").Searchable(),
			schema.Textarea("Body"),
			schema.BelongsTo("User"),
		).
		DisplayField("Title").
		Publishable()

	data, err := post.Compile()

Compile derives every identifier by convention:

  - slug:          param-case of the name ("Blog Post" -> "blog-post")
  - databaseField: snake_case of the field name ("Published At" -> "published_at")
  - permissions:   create, read, update, delete, index suffixed by ":" + slug
  - table:         plural snake_case of the name ("Blog Post" -> "blog_posts")

# Field Types

  - text, textarea, password: string values
  - number, integer:          numeric values
  - boolean:                  true/false
  - date, timestamp:          time values
  - select:                   one of an ordered list of options
  - json:                     arbitrary JSON
  - belongs-to:               column holding the related id (<name>_id)
  - has-one, has-many, belongs-to-many: virtual, no column

# Publishable Resources

Publishable appends a nullable "Published At" timestamp and two filters,
"Published" and "Drafted". NotPublishable removes exactly those synthetic
artifacts; user declarations with the same names are never touched.

# Filters and Actions

A filter's condition produces a Where constraint in operator form
({"published_at": {"$ne": nil}}). The schema package never evaluates it; the
storage adapter does. Actions carry a handler invoked against a selected record
set.

# Parsing

Resources can also be declared in YAML:

	spec, err := schema.ParseFile("resources/post.yaml")
	specs, err := schema.ParseDir("resources/")
*/
package schema
