package validator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiletoly/sqlitenow-go/loader"
)

func loadSchema(t *testing.T, content string) []loader.SchemaSource {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.sql"), []byte(content), 0644))
	sources, err := loader.LoadSchema(dir)
	require.NoError(t, err)
	return sources
}

func TestBuildSchemaTable(t *testing.T) {
	sources := loadSchema(t, `CREATE TABLE person (
    person_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    -- @adapter type=time.Time
    birth_date TEXT,
    created_at TEXT NOT NULL DEFAULT 'now'
);
`)

	tables, views, err := BuildSchema(sources)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Empty(t, views)

	tbl := tables[0]
	assert.Equal(t, "person", tbl.Name)
	require.Len(t, tbl.Columns, 4)

	// column order and DDL facts come from the engine's introspection
	assert.Equal(t, "person_id", tbl.Columns[0].Name)
	assert.True(t, tbl.Columns[0].PrimaryKey)

	assert.Equal(t, "name", tbl.Columns[1].Name)
	assert.True(t, tbl.Columns[1].NotNull)

	assert.Equal(t, "birth_date", tbl.Columns[2].Name)
	assert.False(t, tbl.Columns[2].NotNull)
	assert.True(t, tbl.Columns[2].Annotations.Adapter)
	require.NotNil(t, tbl.Columns[2].Annotations.PropertyType)
	assert.Equal(t, "time.Time", *tbl.Columns[2].Annotations.PropertyType)

	assert.Equal(t, "created_at", tbl.Columns[3].Name)
	assert.NotNil(t, tbl.Columns[3].Default)
}

func TestBuildSchemaView(t *testing.T) {
	sources := loadSchema(t, `CREATE TABLE person (
    person_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

-- @field=full_name property=fullName
CREATE VIEW person_names AS SELECT person_id, name AS full_name FROM person;
`)

	tables, views, err := BuildSchema(sources)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, "person_names", v.Name)
	require.Len(t, v.Fields, 2)
	assert.Equal(t, "person_id", v.Fields[0].Alias)
	assert.Equal(t, "person", v.Fields[0].Table)
	assert.Equal(t, "full_name", v.Fields[1].Alias)
	// aliased columns resolve their owner through the original column name
	assert.Equal(t, "person", v.Fields[1].Table)
	require.NotNil(t, v.Fields[1].Annotations.Property)
	assert.Equal(t, "fullName", *v.Fields[1].Annotations.Property)
}

func TestBuildSchemaRejectsBadDDL(t *testing.T) {
	sources := loadSchema(t, "CREATE TABLE person (name TEXT,,);\n")
	_, _, err := BuildSchema(sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DDL does not execute")
}

func TestBuildSchemaRejectsAnnotationOnUnknownColumn(t *testing.T) {
	sources := loadSchema(t, `CREATE TABLE person (
    name TEXT
);
`)
	// annotate a column the engine does not report
	sources[0].Columns["no_such"] = sources[0].Columns["name"]
	_, _, err := BuildSchema(sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `annotation on unknown column "no_such"`)
}

func TestBuildSchemaRejectsDynamicOnTable(t *testing.T) {
	sources := loadSchema(t, `-- @field=extra dynamic type=Extra
CREATE TABLE person (
    name TEXT
);
`)
	_, _, err := BuildSchema(sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynamic fields are not allowed on table")
}
