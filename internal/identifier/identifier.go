// Package identifier implements the name, fully-qualified-name, and URN
// types that every other package uses as its canonical key, grounded on
// the original source's identifier quoting/equality rules (spec §3.1, §4.1).
package identifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// unquotedPattern matches the characters a Name may contain without being
// quoted: letters, digits, underscore, and dollar sign.
var unquotedPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// reservedKeywords forces quoting even when the bare text would otherwise
// be a legal unquoted identifier.
var reservedKeywords = map[string]bool{
	"TABLE": true, "SELECT": true, "GRANT": true, "ROLE": true,
	"USER": true, "SCHEMA": true, "DATABASE": true, "ORDER": true,
	"GROUP": true, "PUBLIC": false, // PUBLIC is a legal, commonly-used name
}

// Name is a single identifier token carrying whether it was (or must be)
// quoted. Two Names compare equal per the quoting rule in spec §3.1: if
// either side is quoted, compare raw text; if neither is quoted, compare
// uppercased text.
type Name struct {
	Raw    string
	Quoted bool
}

// NewName builds a Name, quoted by the caller's declaration.
func NewName(raw string, quoted bool) Name {
	return Name{Raw: raw, Quoted: quoted}
}

// ParseName parses a single dotted segment, recognizing a double-quoted
// form ("My Name") and an unquoted bare form. Doubled quotes inside a
// quoted segment are unescaped per Snowflake's `""`-escaping convention.
func ParseName(segment string) (Name, error) {
	s := strings.TrimSpace(segment)
	if s == "" {
		return Name{}, fmt.Errorf("identifier: empty name segment")
	}

	if strings.HasPrefix(s, `"`) {
		if !strings.HasSuffix(s, `"`) || len(s) < 2 {
			return Name{}, fmt.Errorf("identifier: unterminated quoted name %q", segment)
		}

		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `""`, `"`)

		return Name{Raw: inner, Quoted: true}, nil
	}

	return Name{Raw: s, Quoted: false}, nil
}

// requiresQuoting reports whether Render must emit the quoted form for the
// raw text alone, independent of whatever the original input looked like.
func requiresQuoting(raw string) bool {
	if raw == "" {
		return true
	}

	if !unquotedPattern.MatchString(raw) {
		return true
	}

	return reservedKeywords[strings.ToUpper(raw)]
}

// Render renders the name, choosing the quoted form when required by
// content or when the Name was parsed/constructed as quoted (spec §4.1).
func (n Name) Render() string {
	if n.Quoted || requiresQuoting(n.Raw) {
		escaped := strings.ReplaceAll(n.Raw, `"`, `""`)
		return `"` + escaped + `"`
	}

	return n.Raw
}

// canonical returns the comparison key: raw text if quoted, upper-cased
// text otherwise. Per the open question in spec §9, mixed-case unquoted
// metadata is canonicalized the same as any other unquoted text (upper),
// since the source's documented behavior only covers the all-lowercase
// case and we decline to special-case partial casing (see DESIGN.md).
func (n Name) canonical() string {
	if n.Quoted {
		return n.Raw
	}

	return strings.ToUpper(n.Raw)
}

// Equal implements the identifier-equality rule used throughout the
// catalog and planner: if either side is quoted the raw texts are
// compared, otherwise the upper-cased texts are. It is reflexive and
// symmetric; it is transitive among names that are all quoted or all
// unquoted.
func (n Name) Equal(other Name) bool {
	if n.Quoted || other.Quoted {
		return n.Raw == other.Raw
	}

	return n.canonical() == other.canonical()
}

func (n Name) String() string { return n.Render() }

// IsZero reports whether n is the zero Name (used to detect an absent
// optional Database/Schema component of an FQN).
func (n Name) IsZero() bool { return n.Raw == "" && !n.Quoted }

// FQN is a fully qualified name: an optional Database, an optional
// Schema, the object Name, an optional argument-type signature (for
// callables), and an ordered parameter map used to disambiguate
// non-object resources such as grants (spec §3.1).
type FQN struct {
	Database Name
	Schema   Name
	Name     Name
	ArgTypes []string
	Params   []Param
}

// Param is one ordered key/value pair of an FQN's disambiguating
// parameter map (e.g. a grant's priv/on/to triple).
type Param struct {
	Key   string
	Value string
}

// ScopeHint tells ParseFQN how to disambiguate a two-part dotted form:
// `a.b` is `database.schema` when the caller already knows the result is
// schema-scoped, or `schema.name` when it knows the result is an object
// living directly in a schema.
type ScopeHint int

const (
	// HintNone: a bare one-part name, or the input is already unambiguous.
	HintNone ScopeHint = iota
	// HintTwoPartIsDatabaseSchema: `a.b` means database.schema.
	HintTwoPartIsDatabaseSchema
	// HintTwoPartIsSchemaName: `a.b` means schema.name.
	HintTwoPartIsSchemaName
)

// splitDotted splits s on unquoted dots, keeping quoted segments intact.
func splitDotted(s string) ([]string, error) {
	var parts []string

	var cur strings.Builder

	inQuotes := false

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == '.' && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("identifier: unterminated quote in %q", s)
	}

	parts = append(parts, cur.String())

	return parts, nil
}

// ParseFQN accepts dotted forms of 1-3 parts plus an optional
// parenthesized argument signature, e.g. `DB.SCHEMA.FN(NUMBER, VARCHAR)`.
func ParseFQN(s string, hint ScopeHint) (FQN, error) {
	body := s

	var argTypes []string

	if idx := strings.Index(s, "("); idx >= 0 {
		if !strings.HasSuffix(s, ")") {
			return FQN{}, fmt.Errorf("identifier: unterminated argument signature in %q", s)
		}

		body = s[:idx]
		sig := s[idx+1 : len(s)-1]

		if strings.TrimSpace(sig) != "" {
			for _, t := range strings.Split(sig, ",") {
				argTypes = append(argTypes, strings.TrimSpace(t))
			}
		}
	}

	parts, err := splitDotted(body)
	if err != nil {
		return FQN{}, err
	}

	names := make([]Name, len(parts))
	for i, p := range parts {
		n, err := ParseName(p)
		if err != nil {
			return FQN{}, err
		}

		names[i] = n
	}

	fqn := FQN{ArgTypes: argTypes}

	switch len(names) {
	case 1:
		fqn.Name = names[0]
	case 2:
		switch hint {
		case HintTwoPartIsDatabaseSchema:
			fqn.Database = names[0]
			fqn.Schema = names[1]
		case HintTwoPartIsSchemaName:
			fqn.Schema = names[0]
			fqn.Name = names[1]
		default:
			return FQN{}, fmt.Errorf("identifier: ambiguous two-part name %q requires a scope hint", s)
		}
	case 3:
		fqn.Database = names[0]
		fqn.Schema = names[1]
		fqn.Name = names[2]
	default:
		return FQN{}, fmt.Errorf("identifier: %q has %d dotted parts, expected 1-3", s, len(names))
	}

	return fqn, nil
}

// Render renders the dotted form, including any argument signature.
func (f FQN) Render() string {
	var parts []string
	if !f.Database.IsZero() {
		parts = append(parts, f.Database.Render())
	}

	if !f.Schema.IsZero() {
		parts = append(parts, f.Schema.Render())
	}

	parts = append(parts, f.Name.Render())

	out := strings.Join(parts, ".")
	if f.ArgTypes != nil {
		out += "(" + strings.Join(f.ArgTypes, ", ") + ")"
	}

	return out
}

// paramsString renders the FQN's ordered param map as a query-string-like
// suffix, sorted by key for determinism when the caller built Params out
// of order (Params itself preserves caller order for Render, but URN
// equality/rendering needs a stable form — see URN.Render).
func paramsString(params []Param) string {
	sorted := make([]Param, len(params))
	copy(sorted, params)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = p.Key + "=" + p.Value
	}

	return strings.Join(parts, "&")
}

// URN is the canonical, structural key of every entity inside the core:
// `urn:{org?}:{account_locator}:{kind}/{fqn}[?params]` (spec §3.1).
type URN struct {
	Org            string
	AccountLocator string
	Kind           string
	FQN            FQN
}

// Render produces the canonical lossless string form.
func (u URN) Render() string {
	var b strings.Builder

	b.WriteString("urn:")
	b.WriteString(u.Org)
	b.WriteString(":")
	b.WriteString(u.AccountLocator)
	b.WriteString(":")
	b.WriteString(u.Kind)
	b.WriteString("/")
	b.WriteString(u.FQN.Render())

	if len(u.FQN.Params) > 0 {
		b.WriteString("?")
		b.WriteString(paramsString(u.FQN.Params))
	}

	return b.String()
}

func (u URN) String() string { return u.Render() }

// ParseURN parses the canonical string form back into a URN. The round
// trip parseURN(render(u)) == u is a tested invariant.
func ParseURN(s string) (URN, error) {
	if !strings.HasPrefix(s, "urn:") {
		return URN{}, fmt.Errorf("identifier: %q is not a urn (missing urn: prefix)", s)
	}

	rest := s[len("urn:"):]

	segs := strings.SplitN(rest, ":", 3)
	if len(segs) != 3 {
		return URN{}, fmt.Errorf("identifier: %q does not have org:account:kind/fqn shape", s)
	}

	org, account, kindAndFQN := segs[0], segs[1], segs[2]

	slash := strings.Index(kindAndFQN, "/")
	if slash < 0 {
		return URN{}, fmt.Errorf("identifier: %q is missing the kind/fqn separator", s)
	}

	kind := kindAndFQN[:slash]
	fqnAndParams := kindAndFQN[slash+1:]

	fqnStr := fqnAndParams

	var params []Param

	if q := strings.Index(fqnAndParams, "?"); q >= 0 {
		fqnStr = fqnAndParams[:q]

		for _, kv := range strings.Split(fqnAndParams[q+1:], "&") {
			if kv == "" {
				continue
			}

			eq := strings.Index(kv, "=")
			if eq < 0 {
				return URN{}, fmt.Errorf("identifier: malformed urn param %q in %q", kv, s)
			}

			params = append(params, Param{Key: kv[:eq], Value: kv[eq+1:]})
		}
	}

	hint := HintNone
	if strings.Count(fqnStr, ".") >= 1 && !strings.Contains(fqnStr, "(") {
		hint = HintTwoPartIsSchemaName
	}

	dotCount := 0
	for _, r := range fqnStr {
		if r == '.' {
			dotCount++
		}
	}

	if dotCount == 1 {
		hint = schemaOrDatabaseHintForKind(kind)
	}

	fqn, err := ParseFQN(fqnStr, hint)
	if err != nil {
		return URN{}, fmt.Errorf("identifier: parsing fqn of %q: %w", s, err)
	}

	fqn.Params = params

	return URN{Org: org, AccountLocator: account, Kind: kind, FQN: fqn}, nil
}

// schemaOrDatabaseHintForKind disambiguates a two-part FQN inside a URN
// using the kind tag: the schema kind reads `a.b` as database.schema;
// every other kind, including unknown ones, reads it as schema.name, the
// more common shape for the catalog's object kinds.
func schemaOrDatabaseHintForKind(kind string) ScopeHint {
	switch kind {
	case "schema":
		return HintTwoPartIsDatabaseSchema
	default:
		return HintTwoPartIsSchemaName
	}
}

// EqualName is the free-function form of Name.Equal, used by callers that
// don't otherwise have a Name receiver at hand (e.g. generic field diff
// code operating over reflected values).
func EqualName(a, b Name) bool { return a.Equal(b) }
