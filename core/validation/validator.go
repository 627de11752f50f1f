// Package validation checks record payloads against the rules of a compiled
// resource. Payload keys are database fields. Validation runs before storage
// operations; rules the validator does not know are ignored.
package validation

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/artpar/adminkit/core/schema"
)

// Implicit columns managed by storage. Payloads may carry them and they are
// never validated.
var Implicit = map[string]bool{"id": true, "created_at": true, "updated_at": true}

// FieldError is one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result collects every failure of one payload.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// AddError records a failure.
func (r *Result) AddError(field, rule string, value any, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Rule: rule, Value: value, Message: message})
}

// Err returns nil for a valid result, otherwise an *Error.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Errors: r.Errors}
}

// Error is a failed validation returned as an error.
type Error struct {
	Errors []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ValidateCreate validates a payload for a new record.
func ValidateCreate(res schema.ResourceData, data map[string]any) Result {
	result := Result{Valid: true}
	checkUnknown(&result, res, data)

	for _, field := range res.StoredFields() {
		value, hasValue := data[field.DatabaseField]

		if field.IsRequired() && isEmpty(value) {
			if field.DefaultValue == nil {
				result.AddError(field.DatabaseField, string(schema.RuleRequired), nil, "field is required")
			}
			continue
		}

		if !hasValue || value == nil {
			if !field.Nullable && hasValue {
				result.AddError(field.DatabaseField, "nullable", nil, "field cannot be null")
			}
			continue
		}

		validateType(&result, field, value)
		validateRules(&result, field, field.CreateRules(), value, data)
	}

	return result
}

// ValidateUpdate validates a partial payload. Only supplied fields are checked.
func ValidateUpdate(res schema.ResourceData, data map[string]any) Result {
	result := Result{Valid: true}
	checkUnknown(&result, res, data)

	for _, field := range res.StoredFields() {
		value, hasValue := data[field.DatabaseField]
		if !hasValue {
			continue
		}

		// Explicit null clears the field.
		if value == nil {
			if !field.Nullable {
				result.AddError(field.DatabaseField, "nullable", nil, "field cannot be null")
			}
			continue
		}

		rules := field.EditRules()
		if hasKind(rules, schema.RuleRequired) && isEmpty(value) {
			result.AddError(field.DatabaseField, string(schema.RuleRequired), value, "field cannot be empty")
			continue
		}

		validateType(&result, field, value)
		validateRules(&result, field, rules, value, data)
	}

	return result
}

// checkUnknown rejects keys the resource does not store (strict mode).
func checkUnknown(result *Result, res schema.ResourceData, data map[string]any) {
	for key := range data {
		if Implicit[key] || strings.HasSuffix(key, "_confirmation") {
			continue
		}
		f, ok := res.FieldByDatabaseField(key)
		if !ok {
			result.AddError(key, "unknown_field", nil, fmt.Sprintf("unknown field '%s' - not defined in resource %s", key, res.Slug))
			continue
		}
		if f.Virtual {
			result.AddError(key, "virtual", nil, "relation is not stored on this resource")
		}
	}
}

// validateType checks the value matches the field type.
func validateType(result *Result, field schema.FieldData, value any) {
	name := field.DatabaseField
	switch field.Type {
	case schema.FieldTypeText, schema.FieldTypeTextarea, schema.FieldTypePassword:
		if _, ok := value.(string); !ok {
			result.AddError(name, "type", value, "must be a string")
		}

	case schema.FieldTypeNumber:
		if _, ok := toFloat(value); !ok {
			result.AddError(name, "type", value, "must be a number")
		}

	case schema.FieldTypeInteger, schema.FieldTypeBelongsTo:
		if field.Type == schema.FieldTypeBelongsTo {
			if s, ok := value.(string); ok {
				if strings.TrimSpace(s) == "" {
					result.AddError(name, "type", value, "reference cannot be empty")
				}
				return
			}
		}
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			result.AddError(name, "type", value, "must be an integer")
		}

	case schema.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			result.AddError(name, "type", value, "must be a boolean")
		}

	case schema.FieldTypeDate:
		if !isTime(value, "2006-01-02") {
			result.AddError(name, "type", value, "must be a date (YYYY-MM-DD)")
		}

	case schema.FieldTypeTimestamp:
		if !isTime(value, time.RFC3339) {
			result.AddError(name, "type", value, "must be an RFC 3339 timestamp")
		}

	case schema.FieldTypeSelect:
		s := fmt.Sprint(value)
		allowed := make([]string, len(field.SelectOptions))
		found := false
		for i, o := range field.SelectOptions {
			allowed[i] = o.Value
			found = found || o.Value == s
		}
		if !found {
			result.AddError(name, "in", value, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
		}
	}
}

// validateRules applies the rule list to a present, non-null value.
func validateRules(result *Result, field schema.FieldData, rules []string, value any, data map[string]any) {
	name := field.DatabaseField
	for _, rule := range schema.ParseRules(rules...) {
		switch rule.Kind {
		case schema.RuleEmail:
			if _, err := mail.ParseAddress(fmt.Sprint(value)); err != nil {
				result.AddError(name, rule.Raw, value, "invalid email address")
			}

		case schema.RuleURL:
			if u, err := url.ParseRequestURI(fmt.Sprint(value)); err != nil || u.Scheme == "" {
				result.AddError(name, rule.Raw, value, "invalid URL")
			}

		case schema.RuleMin, schema.RuleMax:
			limit, err := strconv.ParseFloat(rule.Arg(0), 64)
			if err != nil {
				continue
			}
			size, unit := measure(value)
			if rule.Kind == schema.RuleMin && size < limit {
				result.AddError(name, rule.Raw, value, fmt.Sprintf("must be at least %s%s", rule.Arg(0), unit))
			}
			if rule.Kind == schema.RuleMax && size > limit {
				result.AddError(name, rule.Raw, value, fmt.Sprintf("must be at most %s%s", rule.Arg(0), unit))
			}

		case schema.RuleIn:
			s := fmt.Sprint(value)
			if !containsString(rule.Args, s) {
				result.AddError(name, rule.Raw, value, fmt.Sprintf("must be one of: %s", strings.Join(rule.Args, ", ")))
			}

		case schema.RuleNumeric:
			if _, ok := toFloat(value); !ok {
				result.AddError(name, rule.Raw, value, "must be numeric")
			}

		case schema.RuleInteger:
			if f, ok := toFloat(value); !ok || f != math.Trunc(f) {
				result.AddError(name, rule.Raw, value, "must be an integer")
			}

		case schema.RuleBoolean:
			if _, ok := value.(bool); !ok {
				result.AddError(name, rule.Raw, value, "must be a boolean")
			}

		case schema.RuleAlphaNum:
			for _, r := range fmt.Sprint(value) {
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					result.AddError(name, rule.Raw, value, "must contain only letters and digits")
					break
				}
			}

		case schema.RuleRegex:
			re, err := regexp.Compile(rule.Arg(0))
			if err != nil {
				result.AddError(name, rule.Raw, value, "invalid pattern in rule")
				continue
			}
			if !re.MatchString(fmt.Sprint(value)) {
				result.AddError(name, rule.Raw, value, fmt.Sprintf("must match pattern %s", rule.Arg(0)))
			}

		case schema.RuleConfirmed:
			if conf, ok := data[name+"_confirmation"]; !ok || fmt.Sprint(conf) != fmt.Sprint(value) {
				result.AddError(name, rule.Raw, nil, "confirmation does not match")
			}
		}
	}
}

// measure returns the length of a string or the value of a number.
func measure(value any) (float64, string) {
	if s, ok := value.(string); ok {
		return float64(utf8.RuneCountInString(s)), " characters"
	}
	if f, ok := toFloat(value); ok {
		return f, ""
	}
	return 0, ""
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func isTime(value any, layout string) bool {
	switch v := value.(type) {
	case time.Time:
		return true
	case string:
		_, err := time.Parse(layout, v)
		return err == nil
	}
	return false
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func hasKind(rules []string, kind schema.RuleKind) bool {
	for _, r := range schema.ParseRules(rules...) {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// containsString checks if a string is in a slice.
func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
