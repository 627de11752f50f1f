package schema

import (
	"strings"
)

// RuleKind identifies a validation rule.
type RuleKind string

const (
	RuleRequired  RuleKind = "required"
	RuleEmail     RuleKind = "email"
	RuleURL       RuleKind = "url"
	RuleMin       RuleKind = "min"       // min:<n>, length for strings, value for numbers
	RuleMax       RuleKind = "max"       // max:<n>
	RuleIn        RuleKind = "in"        // in:a,b,c
	RuleNumeric   RuleKind = "numeric"   // parses as a number
	RuleInteger   RuleKind = "integer"   // parses as an integer
	RuleBoolean   RuleKind = "boolean"   // true/false
	RuleAlphaNum  RuleKind = "alpha_num" // letters and digits only
	RuleRegex     RuleKind = "regex"     // regex:<pattern>
	RuleUnique    RuleKind = "unique"    // enforced by storage
	RuleConfirmed RuleKind = "confirmed" // <field>_confirmation must match
)

// Rule is one parsed validation rule.
// Unknown kinds are kept so validators can decide how to treat them.
type Rule struct {
	Kind RuleKind
	Args []string
	Raw  string
}

// Arg returns the i-th argument or "".
func (r Rule) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Known reports whether the kind is one of the built-in rules.
func (r Rule) Known() bool {
	switch r.Kind {
	case RuleRequired, RuleEmail, RuleURL, RuleMin, RuleMax, RuleIn, RuleNumeric,
		RuleInteger, RuleBoolean, RuleAlphaNum, RuleRegex, RuleUnique, RuleConfirmed:
		return true
	}
	return false
}

// ParseRule parses "min:8" or "in:draft,published".
// A regex argument is taken verbatim since patterns may contain commas.
func ParseRule(raw string) Rule {
	raw = strings.TrimSpace(raw)
	name, arg, hasArg := strings.Cut(raw, ":")
	r := Rule{Kind: RuleKind(strings.ToLower(strings.TrimSpace(name))), Raw: raw}
	if !hasArg {
		return r
	}
	if r.Kind == RuleRegex {
		r.Args = []string{arg}
		return r
	}
	for _, a := range strings.Split(arg, ",") {
		r.Args = append(r.Args, strings.TrimSpace(a))
	}
	return r
}

// ParseRules parses a rule list where each entry may itself hold several
// rules joined by "|".
func ParseRules(rules ...string) []Rule {
	var out []Rule
	for _, entry := range rules {
		for _, raw := range strings.Split(entry, "|") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			out = append(out, ParseRule(raw))
		}
	}
	return out
}

func hasRule(rules []string, kind RuleKind) bool {
	for _, r := range ParseRules(rules...) {
		if r.Kind == kind {
			return true
		}
	}
	return false
}
