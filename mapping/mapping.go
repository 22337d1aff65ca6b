package mapping

import (
	"fmt"
	"strings"

	"github.com/mobiletoly/sqlitenow-go/schema"
)

// Role classifies how a dynamic field folds flat result columns into an
// object graph.
type Role int

const (
	// RoleDefault is a custom/opaque mapping with no declared mapping type.
	RoleDefault Role = iota
	// RoleCollection aggregates many rows into one collection value.
	RoleCollection
	// RolePerRow builds one nested object per result row.
	RolePerRow
	// RoleEntity builds a shared, deduplicated nested object.
	RoleEntity
)

func (r Role) String() string {
	switch r {
	case RoleCollection:
		return "collection"
	case RolePerRow:
		return "perRow"
	case RoleEntity:
		return "entity"
	}
	return "default"
}

func roleFor(mappingType *string) (Role, error) {
	if mappingType == nil {
		return RoleDefault, nil
	}
	switch strings.ToLower(*mappingType) {
	case "collection":
		return RoleCollection, nil
	case "perrow", "per_row":
		return RolePerRow, nil
	case "entity":
		return RoleEntity, nil
	}
	return RoleDefault, fmt.Errorf("unknown mappingType %q", *mappingType)
}

// Entry is one included dynamic field of a plan.
type Entry struct {
	Name          string
	Role          Role
	AliasPrefix   string
	SourceTable   string
	CollectionKey string
	// SourceColumns lists the emitted aliases absorbed into this mapping, in
	// statement field order.
	SourceColumns []string
}

// Plan is the derived, read-only output-shape view of one statement's field
// list. Classification depends only on the field list and annotations, never
// on table metadata, so views and queries plan without a live schema.
type Plan struct {
	// PlainFields are the scalar outputs: not dynamic, not absorbed into any
	// mapping, no disambiguation suffix, not nested under a declared alias
	// prefix. Statement field order is preserved.
	PlainFields []schema.Field
	// MappedAliases is the set of emitted aliases absorbed into nested
	// structures (join-disambiguated fields included).
	MappedAliases map[string]bool
	// Dynamic lists the included dynamic fields in declaration order.
	Dynamic []Entry
	// Skipped names the dynamic fields whose declared source columns never
	// appear in the field list. An explicit exclusion list keeps "object
	// present but empty" and "object mapping impossible" distinguishable
	// upstream.
	Skipped []string
}

// IncludesDynamic reports whether a dynamic field made it into the plan.
func (p *Plan) IncludesDynamic(name string) bool {
	for _, e := range p.Dynamic {
		if e.Name == name {
			return true
		}
	}
	return false
}

// PlanStatement classifies every column of a resolved field list as plain,
// nested-embedded or collection-aggregated, and computes which dynamic
// fields are unmappable and must be skipped.
func PlanStatement(fields []schema.Field, dynamics []schema.DynamicField) (*Plan, error) {
	plan := &Plan{MappedAliases: map[string]bool{}}

	var prefixes []string
	for _, d := range dynamics {
		if p := d.Annotations.RemoveAliasPrefix; p != nil && *p != "" {
			prefixes = append(prefixes, *p)
		}
	}

	for _, d := range dynamics {
		role, err := roleFor(d.Annotations.MappingType)
		if err != nil {
			return nil, fmt.Errorf("dynamic field %q: %v", d.Name, err)
		}
		entry := Entry{Name: d.Name, Role: role}
		if p := d.Annotations.RemoveAliasPrefix; p != nil {
			entry.AliasPrefix = *p
		}
		if t := d.Annotations.SourceTable; t != nil {
			entry.SourceTable = *t
		}
		if k := d.Annotations.CollectionKey; k != nil {
			entry.CollectionKey = *k
		}
		if role != RoleDefault && entry.AliasPrefix == "" && entry.SourceTable == "" {
			return nil, fmt.Errorf("dynamic field %q: mappingType %s needs removeAliasPrefix or sourceTable", d.Name, role)
		}

		entry.SourceColumns = sourceColumns(fields, entry, prefixes)
		declared := entry.AliasPrefix != "" || entry.SourceTable != ""
		if declared && len(entry.SourceColumns) == 0 {
			plan.Skipped = append(plan.Skipped, d.Name)
			continue
		}
		if role != RoleDefault {
			for _, alias := range entry.SourceColumns {
				plan.MappedAliases[alias] = true
			}
		}
		plan.Dynamic = append(plan.Dynamic, entry)
	}

	for _, f := range fields {
		if f.Disambiguated() {
			// exists only to avoid a join name collision, never a scalar output
			plan.MappedAliases[f.Alias] = true
			continue
		}
		if plan.MappedAliases[f.Alias] {
			continue
		}
		if underAnyPrefix(f, prefixes) {
			continue
		}
		plan.PlainFields = append(plan.PlainFields, f)
	}
	return plan, nil
}

// sourceColumns collects the fields a dynamic mapping absorbs: alias-prefix
// matches (or source-table matches when no prefix is declared), excluding
// fields nested one level deeper under a longer declared prefix so nesting
// composes without columns leaking into an ancestor's mapped set.
func sourceColumns(fields []schema.Field, entry Entry, prefixes []string) []string {
	var cols []string
	for _, f := range fields {
		base := f.BaseAlias()
		switch {
		case entry.AliasPrefix != "":
			if !strings.HasPrefix(base, entry.AliasPrefix) {
				continue
			}
			if deeper(base, entry.AliasPrefix, prefixes) {
				continue
			}
		case entry.SourceTable != "":
			if !strings.EqualFold(f.Table, entry.SourceTable) {
				continue
			}
		default:
			continue
		}
		cols = append(cols, f.Alias)
	}
	return cols
}

func deeper(alias, prefix string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(p) > len(prefix) && strings.HasPrefix(p, prefix) && strings.HasPrefix(alias, p) {
			return true
		}
	}
	return false
}

func underAnyPrefix(f schema.Field, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(f.BaseAlias(), p) {
			return true
		}
	}
	return false
}
