package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiletoly/sqlitenow-go/annotation"
	"github.com/mobiletoly/sqlitenow-go/schema"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func personTable() *schema.Table {
	return &schema.Table{
		Name: "person",
		Columns: []schema.Column{
			{Name: "person_id", Type: "INTEGER", NotNull: true, PrimaryKey: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "birth_date", Type: "TEXT"},
			{Name: "score", Type: "REAL"},
		},
	}
}

func TestNullabilityWithoutOverrides(t *testing.T) {
	notNull := &schema.Column{Name: "name", Type: "TEXT", NotNull: true}
	nullable := &schema.Column{Name: "birth_date", Type: "TEXT"}

	assert.False(t, IsNullable(notNull))
	assert.False(t, IsSQLNullable(notNull))
	assert.True(t, IsNullable(nullable))
	assert.True(t, IsSQLNullable(nullable))
}

func TestNullableOverrideNeverRelaxesBinding(t *testing.T) {
	// property widened to nullable; the raw column value stays non-null
	col := &schema.Column{
		Name: "name", Type: "TEXT", NotNull: true,
		Annotations: annotation.FieldAnnotations{NotNull: boolPtr(false)},
	}
	assert.True(t, IsNullable(col))
	assert.False(t, IsSQLNullable(col))
}

func TestNotNullOverrideForcesBothSides(t *testing.T) {
	col := &schema.Column{
		Name: "birth_date", Type: "TEXT",
		Annotations: annotation.FieldAnnotations{NotNull: boolPtr(true)},
	}
	assert.False(t, IsNullable(col))
	assert.False(t, IsSQLNullable(col))
}

func TestFieldNullableFallsThroughToColumn(t *testing.T) {
	ix := NewTableIndex([]*schema.Table{personTable()})

	name := schema.Field{Table: "person", Name: "name", Alias: "name"}
	assert.False(t, FieldNullable(ix, name))
	assert.False(t, FieldSQLNullable(ix, name))

	birth := schema.Field{Table: "person", Name: "birth_date", Alias: "birth_date"}
	assert.True(t, FieldNullable(ix, birth))
	assert.True(t, FieldSQLNullable(ix, birth))

	// computed expression, no owning column: nullable by default
	expr := schema.Field{Expr: "count(*)", Alias: "total"}
	assert.True(t, FieldNullable(ix, expr))
	assert.True(t, FieldSQLNullable(ix, expr))
}

func TestFieldOverrideWinsOverColumn(t *testing.T) {
	ix := NewTableIndex([]*schema.Table{personTable()})
	f := schema.Field{
		Table: "person", Name: "birth_date", Alias: "birth_date",
		Annotations: annotation.FieldAnnotations{NotNull: boolPtr(true)},
	}
	assert.False(t, FieldNullable(ix, f))
	assert.False(t, FieldSQLNullable(ix, f))
}

func TestFindColumn(t *testing.T) {
	ix := NewTableIndex([]*schema.Table{
		personTable(),
		{Name: "comment", Columns: []schema.Column{
			{Name: "comment_id", Type: "INTEGER", NotNull: true},
			{Name: "name", Type: "TEXT"},
		}},
	})

	// qualifier narrows the search
	col := ix.FindColumn(schema.Field{Table: "comment", Name: "name", Alias: "name"})
	require.NotNil(t, col)
	assert.False(t, col.NotNull)

	// unqualified: first table in registration order wins
	col = ix.FindColumn(schema.Field{Name: "name", Alias: "name"})
	require.NotNil(t, col)
	assert.True(t, col.NotNull)

	// alias fallback with a disambiguation suffix
	col = ix.FindColumn(schema.Field{Alias: "birth_date:2"})
	require.NotNil(t, col)
	assert.Equal(t, "birth_date", col.Name)

	// case-insensitive lookups
	col = ix.FindColumn(schema.Field{Table: "PERSON", Name: "NAME", Alias: "NAME"})
	require.NotNil(t, col)

	assert.Nil(t, ix.FindColumn(schema.Field{Table: "nowhere", Name: "name", Alias: "name"}))
	assert.Nil(t, ix.FindColumn(schema.Field{Name: "no_such", Alias: "no_such"}))
}

func TestFillOwnerTables(t *testing.T) {
	ix := NewTableIndex([]*schema.Table{personTable()})
	fields := []schema.Field{
		{Name: "name", Alias: "name"},
		{Name: "name", Alias: "name", Table: "elsewhere"},
		{Expr: "count(*)", Alias: "total"},
		{Name: "no_such", Alias: "no_such"},
	}

	ix.FillOwnerTables(fields)

	assert.Equal(t, "person", fields[0].Table)
	// explicit qualifiers are never overwritten
	assert.Equal(t, "elsewhere", fields[1].Table)
	assert.Empty(t, fields[2].Table)
	assert.Empty(t, fields[3].Table)
}

func TestGoType(t *testing.T) {
	cases := map[string]string{
		"INTEGER":      "int64",
		"int":          "int64",
		"BIGINT":       "int64",
		"TEXT":         "string",
		"VARCHAR(30)":  "string",
		"CLOB":         "string",
		"BLOB":         "[]byte",
		"":             "[]byte",
		"REAL":         "float64",
		"FLOAT":        "float64",
		"DOUBLE":       "float64",
		"BOOLEAN":      "bool",
		"NUMERIC":      "float64",
		"DECIMAL(9,2)": "float64",
	}
	for sqlType, want := range cases {
		assert.Equal(t, want, GoType(sqlType), "type %q", sqlType)
	}
}

func TestFieldType(t *testing.T) {
	ix := NewTableIndex([]*schema.Table{personTable()})

	// field annotation wins
	f := schema.Field{
		Table: "person", Name: "birth_date", Alias: "birth_date",
		Annotations: annotation.FieldAnnotations{PropertyType: strPtr("time.Time")},
	}
	assert.Equal(t, "time.Time", FieldType(ix, f))

	// column annotation next
	tbl := personTable()
	tbl.Columns[2].Annotations.PropertyType = strPtr("time.Time")
	ix2 := NewTableIndex([]*schema.Table{tbl})
	assert.Equal(t, "time.Time", FieldType(ix2, schema.Field{Table: "person", Name: "birth_date", Alias: "birth_date"}))

	// declared SQL type next
	assert.Equal(t, "int64", FieldType(ix, schema.Field{Table: "person", Name: "person_id", Alias: "person_id"}))

	// default for unresolvable fields
	assert.Equal(t, DefaultType, FieldType(ix, schema.Field{Expr: "count(*)", Alias: "total"}))
}
