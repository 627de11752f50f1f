// Package convention derives identifiers from human-readable names.
// Resources, fields, filters, actions, dashboards and plugins are declared by
// display name; every machine name (slug, column, short name, table) is derived
// here so the same name always yields the same identifier.
package convention

import (
	"strings"
	"unicode"
)

// Words splits a name into lower-case words.
// Separators are any non-alphanumeric rune and lower-to-upper case boundaries,
// so "Published At", "published_at", "publishedAt" and "published-at" all
// yield ["published", "at"]. Acronyms stay together: "HTTPServer" yields
// ["http", "server"].
func Words(name string) []string {
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return words
}

// SnakeCase returns the snake_case form of name ("Published At" -> "published_at").
// It is the default transform from a field name to its database column.
func SnakeCase(name string) string {
	return strings.Join(Words(name), "_")
}

// ParamCase returns the kebab-case form of name ("Blog Post" -> "blog-post").
// Used for resource slugs, plugin ids, action and dashboard slugs.
func ParamCase(name string) string {
	return strings.Join(Words(name), "-")
}

// CamelCase returns the lowerCamelCase form of name ("Published At" -> "publishedAt").
// Used for filter short names.
func CamelCase(name string) string {
	words := Words(name)
	for i := 1; i < len(words); i++ {
		words[i] = capitalize(words[i])
	}
	return strings.Join(words, "")
}

// TitleCase returns name with each word capitalized and joined by spaces
// ("draft_post" -> "Draft Post"). Used to derive labels from values.
func TitleCase(name string) string {
	words := Words(name)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// ForeignKey returns the column holding a to-one relation to name
// ("Author" -> "author_id").
func ForeignKey(name string) string {
	return SnakeCase(name) + "_id"
}

// Table returns the storage table for a resource name
// ("Blog Post" -> "blog_posts").
func Table(name string) string {
	words := Words(name)
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = Pluralize(words[len(words)-1])
	return strings.Join(words, "_")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
