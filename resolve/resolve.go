package resolve

import (
	"strings"

	"github.com/mobiletoly/sqlitenow-go/schema"
)

// TableIndex is a read-only index over the schema's tables. Build it once per
// generation run; it is safe for concurrent readers afterwards.
type TableIndex struct {
	tables []*schema.Table
	byName map[string]*schema.Table
}

func NewTableIndex(tables []*schema.Table) *TableIndex {
	ix := &TableIndex{tables: tables, byName: make(map[string]*schema.Table, len(tables))}
	for _, t := range tables {
		ix.byName[strings.ToLower(t.Name)] = t
	}
	return ix
}

// Table looks a table up by name, case-insensitively.
func (ix *TableIndex) Table(name string) *schema.Table {
	return ix.byName[strings.ToLower(name)]
}

// Tables returns the indexed tables in registration order.
func (ix *TableIndex) Tables() []*schema.Table {
	return ix.tables
}

// FindOwner locates the table and column that own a query field. The
// original column name is tried before the emitted alias, case-insensitively.
// A table qualifier narrows the search to that table; otherwise every known
// table is searched in registration order and the first match wins. Returns
// nils when nothing matches (computed or aliased expressions).
func (ix *TableIndex) FindOwner(f schema.Field) (*schema.Table, *schema.Column) {
	var candidates []*schema.Table
	if f.Table != "" {
		t := ix.Table(f.Table)
		if t == nil {
			return nil, nil
		}
		candidates = []*schema.Table{t}
	} else {
		candidates = ix.tables
	}
	if f.Name != "" {
		for _, t := range candidates {
			if col := t.Column(f.Name); col != nil {
				return t, col
			}
		}
	}
	for _, t := range candidates {
		if col := t.Column(f.BaseAlias()); col != nil {
			return t, col
		}
	}
	return nil, nil
}

// FindColumn is FindOwner without the table.
func (ix *TableIndex) FindColumn(f schema.Field) *schema.Column {
	_, col := ix.FindOwner(f)
	return col
}

// FillOwnerTables resolves the originating table of unqualified columns so
// converter namespaces and sourceTable mappings work without qualifiers.
// Computed expressions and fields that resolve nowhere keep an empty Table.
func (ix *TableIndex) FillOwnerTables(fields []schema.Field) {
	for i := range fields {
		if fields[i].Table != "" || fields[i].Name == "" {
			continue
		}
		if owner, _ := ix.FindOwner(fields[i]); owner != nil {
			fields[i].Table = owner.Name
		}
	}
}

// IsNullable reports the nullability of the generated property. An explicit
// notNull override wins over the DDL constraint in both directions.
func IsNullable(col *schema.Column) bool {
	if col.Annotations.NotNull != nil {
		return !*col.Annotations.NotNull
	}
	return !col.NotNull
}

// IsSQLNullable reports the binding-side nullability of the raw column value.
// Only an explicit notNull=true override can force non-null; an override that
// merely declares the generated property nullable never relaxes a genuinely
// NOT NULL column here. Keep this separate from IsNullable: generated binding
// code and generated property types can legitimately disagree.
func IsSQLNullable(col *schema.Column) bool {
	if col.Annotations.NotNull != nil && *col.Annotations.NotNull {
		return false
	}
	return !col.NotNull
}

// FieldNullable resolves the generated nullability of one query field. The
// field's own override wins; otherwise resolution falls through to the owning
// column, and to "nullable" when no column matches.
func FieldNullable(ix *TableIndex, f schema.Field) bool {
	if f.Annotations.NotNull != nil {
		return !*f.Annotations.NotNull
	}
	col := ix.FindColumn(f)
	if col == nil {
		return true
	}
	return IsNullable(col)
}

// FieldSQLNullable resolves the binding-side nullability of one query field.
func FieldSQLNullable(ix *TableIndex, f schema.Field) bool {
	if f.Annotations.NotNull != nil && *f.Annotations.NotNull {
		return false
	}
	col := ix.FindColumn(f)
	if col == nil {
		return true
	}
	return !col.NotNull
}

// DefaultType is the resolved Go type for fields with no owning column and no
// type annotation.
const DefaultType = "string"

// GoType maps a declared SQLite column type to its Go representation,
// following SQLite affinity rules.
func GoType(sqlType string) string {
	t := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(t, "INT"):
		return "int64"
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return "string"
	case strings.Contains(t, "BLOB"), t == "":
		return "[]byte"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return "float64"
	case strings.Contains(t, "BOOL"):
		return "bool"
	default:
		// NUMERIC affinity
		return "float64"
	}
}

// FieldType resolves the target type of one query field: the field's own type
// annotation wins, then the owning column's annotation, then the column's
// declared SQL type, then DefaultType.
func FieldType(ix *TableIndex, f schema.Field) string {
	if f.Annotations.PropertyType != nil {
		return *f.Annotations.PropertyType
	}
	col := ix.FindColumn(f)
	if col == nil {
		return DefaultType
	}
	return ColumnType(col)
}

// ColumnType resolves a column's target type from its annotation or declared
// SQL type.
func ColumnType(col *schema.Column) string {
	if col.Annotations.PropertyType != nil {
		return *col.Annotations.PropertyType
	}
	return GoType(col.Type)
}
