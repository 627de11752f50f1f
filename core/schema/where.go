package schema

// Where is a query constraint in operator form, keyed by database field:
//
//	{"published_at": {"$ne": nil}}
//	{"status": "draft"}                   // plain value means $eq
//	{"views": {"$gte": 10, "$lt": 100}}
//
// Multiple keys are combined with AND. The reserved key "$and" holds a
// []Where whose members must all match as well. The schema package never
// evaluates a Where; storage adapters translate it.
type Where map[string]any

// Comparison operators understood by storage adapters.
const (
	OpEq   = "$eq"
	OpNe   = "$ne"
	OpGt   = "$gt"
	OpGte  = "$gte"
	OpLt   = "$lt"
	OpLte  = "$lte"
	OpIn   = "$in"
	OpLike = "$like"

	// OpAnd is a top-level key, not a field operator.
	OpAnd = "$and"
)

// Operators lists every supported operator.
var Operators = []string{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpLike}

// Cond builds a single-operator constraint on one field.
func Cond(field, op string, value any) Where {
	return Where{field: map[string]any{op: value}}
}

// Eq is shorthand for Cond(field, OpEq, value).
func Eq(field string, value any) Where { return Cond(field, OpEq, value) }

// IsNull matches records where field has no value.
func IsNull(field string) Where { return Cond(field, OpEq, nil) }

// NotNull matches records where field has a value.
func NotNull(field string) Where { return Cond(field, OpNe, nil) }

// And merges constraints. Operators on distinct fields, or distinct operators
// on one field, share a single map. A repeated field and operator never
// replaces the earlier value; the later constraint is kept under OpAnd.
func And(parts ...Where) Where {
	out := Where{}
	var rest []Where
	for _, w := range parts {
		for field, v := range w {
			if field == OpAnd {
				rest = append(rest, Conjuncts(v)...)
				continue
			}
			ops, ok := v.(map[string]any)
			if !ok {
				ops = map[string]any{OpEq: v}
			}
			existing, ok := out[field].(map[string]any)
			if !ok {
				existing = map[string]any{}
				out[field] = existing
			}
			for op, val := range ops {
				if _, taken := existing[op]; taken {
					rest = append(rest, Cond(field, op, val))
					continue
				}
				existing[op] = val
			}
		}
	}
	if len(rest) > 0 {
		out[OpAnd] = rest
	}
	return out
}

// Conjuncts returns the members of an OpAnd value. It accepts []Where and
// the []any of maps produced by decoding YAML or JSON; other members are
// dropped.
func Conjuncts(v any) []Where {
	switch list := v.(type) {
	case []Where:
		return list
	case []any:
		out := make([]Where, 0, len(list))
		for _, item := range list {
			switch m := item.(type) {
			case Where:
				out = append(out, m)
			case map[string]any:
				out = append(out, Where(m))
			}
		}
		return out
	}
	return nil
}
