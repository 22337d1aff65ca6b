package annotation

import (
	"fmt"
	"strconv"
	"strings"
)

// Annotation lines use the form `-- @key=value key2 key3=value3`. A line is
// attached either to a whole statement/table/view (a "top" comment block) or
// to a single column/field (an "inner" comment, or a top-level line carrying
// the `field=` attachment key).
const Prefix = "-- @"

// Recognized keys. Anything else is a parse error, never silently ignored.
const (
	KeyName              = "name"
	KeyResult            = "result"
	KeyField             = "field"
	KeyProperty          = "property"
	KeyType              = "type"
	KeyAdapter           = "adapter"
	KeyNotNull           = "notNull"
	KeyDynamic           = "dynamic"
	KeyDefault           = "default"
	KeyRemoveAliasPrefix = "removeAliasPrefix"
	KeyMappingType       = "mappingType"
	KeySourceTable       = "sourceTable"
	KeyCollectionKey     = "collectionKey"
)

// StatementAnnotations are the statement-level overrides of a query, table or
// view definition.
type StatementAnnotations struct {
	Name   *string
	Result *string
}

// FieldAnnotations is the override record for one column or result field.
// Absent keys stay nil/false; defaulting is each consumer's job.
type FieldAnnotations struct {
	Property          *string
	PropertyType      *string
	Adapter           bool
	NotNull           *bool
	Dynamic           bool
	DefaultValue      *string
	RemoveAliasPrefix *string
	MappingType       *string
	SourceTable       *string
	CollectionKey     *string
}

// IsZero reports whether no annotation key was set on the record.
func (a FieldAnnotations) IsZero() bool {
	return a == FieldAnnotations{}
}

// Merge folds the override record into a generic mapping. Only keys present
// in the record are written; absent keys are never defaulted here.
func (a FieldAnnotations) Merge(dst map[string]any) {
	if a.Property != nil {
		dst[KeyProperty] = *a.Property
	}
	if a.PropertyType != nil {
		dst[KeyType] = *a.PropertyType
	}
	if a.Adapter {
		dst[KeyAdapter] = true
	}
	if a.NotNull != nil {
		dst[KeyNotNull] = *a.NotNull
	}
	if a.Dynamic {
		dst[KeyDynamic] = true
	}
	if a.DefaultValue != nil {
		dst[KeyDefault] = *a.DefaultValue
	}
	if a.RemoveAliasPrefix != nil {
		dst[KeyRemoveAliasPrefix] = *a.RemoveAliasPrefix
	}
	if a.MappingType != nil {
		dst[KeyMappingType] = *a.MappingType
	}
	if a.SourceTable != nil {
		dst[KeySourceTable] = *a.SourceTable
	}
	if a.CollectionKey != nil {
		dst[KeyCollectionKey] = *a.CollectionKey
	}
}

type token struct {
	key   string
	value string
	bare  bool // key without '=value'
}

// parseTokens splits one annotation line (prefix already stripped) into
// key[=value] tokens. Values may be single-quoted to carry spaces.
func parseTokens(line string) ([]token, error) {
	var tokens []token
	rest := strings.TrimSpace(line)
	for rest != "" {
		eq := -1
		end := len(rest)
		for i, r := range rest {
			if r == '=' && eq < 0 {
				eq = i
			}
			if r == ' ' || r == '\t' {
				end = i
				break
			}
		}
		if eq < 0 || eq > end {
			tokens = append(tokens, token{key: rest[:end], bare: true})
			rest = strings.TrimSpace(rest[end:])
			continue
		}
		key := rest[:eq]
		if key == "" {
			return nil, fmt.Errorf("annotation token missing key before '=' in %q", line)
		}
		val := rest[eq+1:]
		if strings.HasPrefix(val, "'") {
			closing := strings.Index(val[1:], "'")
			if closing < 0 {
				return nil, fmt.Errorf("unterminated quoted value in annotation %q", line)
			}
			tokens = append(tokens, token{key: key, value: val[1 : closing+1]})
			rest = strings.TrimSpace(val[closing+2:])
			continue
		}
		end -= eq + 1
		tokens = append(tokens, token{key: key, value: val[:end]})
		rest = strings.TrimSpace(val[end:])
	}
	return tokens, nil
}

func tokensFromLines(lines []string) ([]token, error) {
	var all []token
	for _, line := range lines {
		body := strings.TrimSpace(line)
		if strings.HasPrefix(body, Prefix) {
			body = body[len(Prefix):]
		} else {
			body = strings.TrimPrefix(strings.TrimPrefix(body, "--"), " @")
		}
		tokens, err := parseTokens(body)
		if err != nil {
			return nil, err
		}
		all = append(all, tokens...)
	}
	return all, nil
}

// ParseStatement decodes a statement-level annotation block.
func ParseStatement(lines []string) (StatementAnnotations, error) {
	var out StatementAnnotations
	tokens, err := tokensFromLines(lines)
	if err != nil {
		return out, err
	}
	seen := map[string]bool{}
	for _, tok := range tokens {
		if seen[tok.key] {
			return out, fmt.Errorf("duplicate annotation key %q in statement block", tok.key)
		}
		seen[tok.key] = true
		switch tok.key {
		case KeyName:
			v := tok.value
			out.Name = &v
		case KeyResult:
			v := tok.value
			out.Result = &v
		default:
			return out, fmt.Errorf("unknown statement annotation key %q", tok.key)
		}
	}
	return out, nil
}

// ParseField decodes a field-level annotation record. Duplicate keys within
// one record are rejected at parse time so the merge step never has to pick
// a silent winner.
func ParseField(lines []string) (FieldAnnotations, error) {
	var out FieldAnnotations
	tokens, err := tokensFromLines(lines)
	if err != nil {
		return out, err
	}
	seen := map[string]bool{}
	for _, tok := range tokens {
		if seen[tok.key] {
			return out, fmt.Errorf("duplicate annotation key %q in field record", tok.key)
		}
		seen[tok.key] = true
		switch tok.key {
		case KeyProperty:
			v := tok.value
			out.Property = &v
		case KeyType:
			v := tok.value
			out.PropertyType = &v
		case KeyAdapter:
			out.Adapter = true
		case KeyNotNull:
			b := true
			if !tok.bare {
				b, err = strconv.ParseBool(tok.value)
				if err != nil {
					return out, fmt.Errorf("notNull annotation wants a boolean, got %q", tok.value)
				}
			}
			out.NotNull = &b
		case KeyDynamic:
			out.Dynamic = true
		case KeyDefault:
			v := tok.value
			out.DefaultValue = &v
		case KeyRemoveAliasPrefix:
			v := tok.value
			out.RemoveAliasPrefix = &v
		case KeyMappingType:
			v := tok.value
			out.MappingType = &v
		case KeySourceTable:
			v := tok.value
			out.SourceTable = &v
		case KeyCollectionKey:
			v := tok.value
			out.CollectionKey = &v
		case KeyField:
			// attachment key, consumed by the loader before records reach here
			return out, fmt.Errorf("attachment key %q must be the first token of its line", KeyField)
		default:
			return out, fmt.Errorf("unknown field annotation key %q", tok.key)
		}
	}
	return out, nil
}

// SplitAttachment peels a leading `field=<name>` token off an annotation
// line, returning the target field name and the remaining record text.
func SplitAttachment(line string) (field string, rest string, ok bool) {
	body := strings.TrimSpace(line)
	if !strings.HasPrefix(body, Prefix) {
		return "", "", false
	}
	body = body[len(Prefix):]
	tokens, err := parseTokens(body)
	if err != nil || len(tokens) == 0 || tokens[0].key != KeyField || tokens[0].bare {
		return "", "", false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(body, KeyField+"="+tokens[0].value))
	if strings.HasPrefix(body, KeyField+"='") {
		rest = strings.TrimSpace(strings.TrimPrefix(body, KeyField+"='"+tokens[0].value+"'"))
	}
	return tokens[0].value, Prefix + rest, true
}
