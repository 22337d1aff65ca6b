package adapter

import (
	"sort"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// ParamConfig is one distinct converter reference collected while walking a
// statement's fields and parameters. Many configs may canonicalize to the
// same name; canonicalization preserves input/output type identity per
// config.
type ParamConfig struct {
	// Namespace is the provider namespace the converter is scoped to
	// (originating table or alias). Optional.
	Namespace string
	// FuncName is the raw converter function name, e.g.
	// "sqlValueToPersonBirthDate".
	FuncName string
	// InputType and OutputType form the converter's signature.
	InputType  string
	OutputType string
}

// OutputRawName derives the raw converter name a table-scoped output field
// uses. Every call site that needs to look a converter up must derive the raw
// name through this function (or InputRawName) and then consult an already
// computed Assignment; recomputing canonicalization ad hoc makes names drift.
func OutputRawName(table, property string) string {
	return "sqlValueTo" + pascal(table) + pascal(property)
}

// InputRawName derives the raw converter name for a bind-parameter adapter.
func InputRawName(table, property string) string {
	return camel(pascal(table)+pascal(property)) + "ToSqlValue"
}

func pascal(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "_- ") {
		return inflect.Camelize(strings.ToLower(s))
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func camel(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// splitWords cuts a pascal-cased property portion into capitalized word
// tokens ("AddressAddressType" -> ["Address", "Address", "Type"]).
func splitWords(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		words = append(words, s[start:])
	}
	return words
}

// toBoundary reports the index of a "To" token followed by an upper-case
// rune. first selects the leftmost boundary, otherwise the rightmost.
func toBoundary(name string, first bool) int {
	found := -1
	for i := 0; i+2 < len(name); i++ {
		if name[i] == 'T' && name[i+1] == 'o' && unicode.IsUpper(rune(name[i+2])) && i > 0 {
			if first {
				return i
			}
			found = i
		}
	}
	return found
}

// Canonicalize strips the provider namespace and alias-duplicated tokens out
// of a converter name. Two forms are recognized: the prefix form
// "<head>To<Prop>" (e.g. sqlValueToPersonBirthDate) strips a matching
// namespace prefix of Prop, and the suffix form "<prop>To<Tail>Value" (e.g.
// birthDatePersonToSqlValue) strips a matching namespace suffix of prop. In
// both forms doubled leading word tokens produced by alias concatenation are
// collapsed. A strip fires only while at least two word tokens would remain,
// so a canonical name whose property merely starts (or ends) with the
// namespace token, like AddressType under address, is a fixed point:
// canonicalizing an already-canonical name returns it unchanged.
func Canonicalize(name, namespace string) string {
	ns := pascal(namespace)
	if strings.HasSuffix(name, "Value") {
		if i := toBoundary(name, false); i > 0 {
			prop, tail := name[:i], name[i:]
			prop = stripSuffix(prop, ns)
			prop = collapseDoubled(prop)
			return prop + tail
		}
	}
	if i := toBoundary(name, true); i > 0 {
		head, prop := name[:i+2], name[i+2:]
		prop = stripPrefix(prop, ns)
		prop = collapseDoubled(prop)
		return head + prop
	}
	return collapseDoubled(name)
}

// stripPrefix removes leading namespace occurrences until the property is
// stable. The two-token floor keeps canonical outputs fixed: stripping
// AddressType down to Type would make a second canonicalization lossy.
func stripPrefix(prop, ns string) string {
	for ns != "" && strings.HasPrefix(prop, ns) && len(prop) > len(ns) {
		rest := prop[len(ns):]
		if !unicode.IsUpper(rune(rest[0])) {
			// namespace match must end on a word boundary
			break
		}
		if len(splitWords(rest)) < 2 {
			break
		}
		prop = rest
	}
	return prop
}

func stripSuffix(prop, ns string) string {
	for ns != "" && len(prop) > len(ns) {
		// compare on the pascal form of the trailing token
		if !strings.HasSuffix(pascal(prop), ns) {
			break
		}
		rest := prop[:len(prop)-len(ns)]
		if len(splitWords(pascal(rest))) < 2 {
			break
		}
		prop = rest
	}
	return prop
}

func collapseDoubled(s string) string {
	if s == "" {
		return s
	}
	if !unicode.IsUpper(rune(s[0])) {
		// keep a lower-cased head word out of the token scan
		words := splitWords(pascal(s))
		if collapsed := dropDoubledHead(words); len(collapsed) < len(words) {
			return camel(strings.Join(collapsed, ""))
		}
		return s
	}
	words := splitWords(s)
	if collapsed := dropDoubledHead(words); len(collapsed) < len(words) {
		return strings.Join(collapsed, "")
	}
	return s
}

// dropDoubledHead removes repeated leading word tokens:
// [Address Address Type] -> [Address Type].
func dropDoubledHead(words []string) []string {
	for len(words) >= 2 && words[0] == words[1] {
		words = words[1:]
	}
	return words
}

// ShortTypeName reduces a possibly qualified type to the unqualified token
// used in disambiguation suffixes ("*time.Time" -> "Time", "[]byte" ->
// "Byte", "int64" -> "Int64").
func ShortTypeName(t string) string {
	t = strings.TrimLeft(t, "*[]")
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return pascal(t)
}

// Assignment is the final converter-name map of one statement. Scope one
// Assignment per statement; the grouping state is never shared across
// statements.
type Assignment struct {
	order []ParamConfig
	names map[ParamConfig]string
}

// Assign canonicalizes and deduplicates every converter reference of one
// statement. Configs bucketed under one canonical name with a single
// (input, output) signature keep the canonical name; a bucket holding several
// signatures disambiguates every config as
// <canonical>For<InputShortName>To<OutputShortName>. The result is
// deterministic for any input order.
func Assign(configs []ParamConfig) *Assignment {
	a := &Assignment{names: make(map[ParamConfig]string, len(configs))}
	type sig struct{ in, out string }
	buckets := make(map[string]map[sig][]ParamConfig)
	var canonicalOrder []string
	for _, cfg := range configs {
		if _, dup := a.names[cfg]; dup {
			continue
		}
		a.names[cfg] = "" // reserve; final name assigned below
		a.order = append(a.order, cfg)
		canonical := Canonicalize(cfg.FuncName, cfg.Namespace)
		if buckets[canonical] == nil {
			buckets[canonical] = make(map[sig][]ParamConfig)
			canonicalOrder = append(canonicalOrder, canonical)
		}
		s := sig{cfg.InputType, cfg.OutputType}
		buckets[canonical][s] = append(buckets[canonical][s], cfg)
	}
	for _, canonical := range canonicalOrder {
		group := buckets[canonical]
		if len(group) == 1 {
			for _, cfgs := range group {
				for _, cfg := range cfgs {
					a.names[cfg] = canonical
				}
			}
			continue
		}
		for s, cfgs := range group {
			name := canonical + "For" + ShortTypeName(s.in) + "To" + ShortTypeName(s.out)
			for _, cfg := range cfgs {
				a.names[cfg] = name
			}
		}
	}
	return a
}

// Name returns the final identifier assigned to a config.
func (a *Assignment) Name(cfg ParamConfig) (string, bool) {
	name, ok := a.names[cfg]
	return name, ok
}

// Configs returns the deduplicated configs in first-seen order.
func (a *Assignment) Configs() []ParamConfig {
	return a.order
}

// ResolveOutputName looks up the parameter name a specific output field's
// converter will use at call sites: exact match on raw name + provider
// namespace first, falling back to a raw-name-only match. The fallback is
// deterministic: candidates are considered in sorted namespace order.
func (a *Assignment) ResolveOutputName(rawName, namespace string) (string, bool) {
	for _, cfg := range a.order {
		if cfg.FuncName == rawName && cfg.Namespace == namespace {
			return a.names[cfg], true
		}
	}
	var fallback []ParamConfig
	for _, cfg := range a.order {
		if cfg.FuncName == rawName {
			fallback = append(fallback, cfg)
		}
	}
	if len(fallback) == 0 {
		return "", false
	}
	sort.Slice(fallback, func(i, j int) bool { return fallback[i].Namespace < fallback[j].Namespace })
	return a.names[fallback[0]], true
}
