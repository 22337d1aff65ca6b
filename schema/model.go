package schema

import (
	"strconv"
	"strings"

	"github.com/mobiletoly/sqlitenow-go/annotation"
)

// Table is an immutable model of one CREATE TABLE definition. Columns keep
// declaration order.
type Table struct {
	Name        string
	SQL         string
	Columns     []Column
	Annotations annotation.StatementAnnotations
}

// Column carries the DDL facts the resolver needs plus the column's own
// annotation record.
type Column struct {
	Name        string
	Type        string
	NotNull     bool
	PrimaryKey  bool
	Default     *string
	Annotations annotation.FieldAnnotations
}

// Column finds a column by name, case-insensitively. Returns nil when the
// table has no such column.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// View is an immutable model of one CREATE VIEW definition. Fields come from
// the underlying select; DynamicFields exist only in annotations.
type View struct {
	Name          string
	SQL           string
	Fields        []Field
	DynamicFields []DynamicField
	Annotations   annotation.StatementAnnotations
}

// StatementKind tags the closed set of statement variants.
type StatementKind int

const (
	KindSelect StatementKind = iota
	KindInsert
	KindUpdate
	KindDelete
)

func (k StatementKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

// Statement is one named, annotated query. Fields is populated for selects
// only; derived results (rewrite output, mapping plans) live outside the
// record so it stays immutable after construction.
type Statement struct {
	Name          string
	Kind          StatementKind
	SQL           string
	Annotations   annotation.StatementAnnotations
	Fields        []Field
	DynamicFields []DynamicField
}

// DisambiguationSeparator joins a duplicated emitted alias and its ordinal,
// e.g. "name:2" for the second join-duplicated "name" column.
const DisambiguationSeparator = ":"

// Field is one output column of a select statement or view.
type Field struct {
	// Table is the resolved source table name ("" for computed expressions
	// or unresolvable qualifiers).
	Table string
	// Name is the original column name ("" for computed expressions).
	Name string
	// Alias is the emitted alias. It may carry a trailing ":<n>"
	// disambiguation suffix when a join duplicates column names; the suffix
	// is significant everywhere except display.
	Alias string
	// Expr holds the formatted expression text for computed fields.
	Expr        string
	Annotations annotation.FieldAnnotations
}

// BaseAlias strips the disambiguation suffix for display and matching.
func (f Field) BaseAlias() string {
	if i := strings.LastIndex(f.Alias, DisambiguationSeparator); i >= 0 {
		if _, err := strconv.Atoi(f.Alias[i+1:]); err == nil {
			return f.Alias[:i]
		}
	}
	return f.Alias
}

// Disambiguated reports whether the emitted alias carries a ":<n>" suffix.
func (f Field) Disambiguated() bool {
	return f.BaseAlias() != f.Alias
}

// DynamicField is a result field that exists only via annotation and
// describes a nested or aggregated object mapping.
type DynamicField struct {
	Name        string
	Annotations annotation.FieldAnnotations
}
