package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiletoly/sqlitenow-go/resolve"
	"github.com/mobiletoly/sqlitenow-go/schema"
)

func testIndex() *resolve.TableIndex {
	return resolve.NewTableIndex([]*schema.Table{
		{Name: "person", Columns: []schema.Column{
			{Name: "person_id", Type: "INTEGER", NotNull: true, PrimaryKey: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "birth_date", Type: "TEXT"},
		}},
		{Name: "comment", Columns: []schema.Column{
			{Name: "comment_id", Type: "INTEGER", NotNull: true, PrimaryKey: true},
			{Name: "person_id", Type: "INTEGER", NotNull: true},
			{Name: "name", Type: "TEXT"},
		}},
	})
}

func TestParseQueryKinds(t *testing.T) {
	cases := []struct {
		sql  string
		kind schema.StatementKind
	}{
		{"SELECT name FROM person", schema.KindSelect},
		{"SELECT name FROM person UNION SELECT name FROM comment", schema.KindSelect},
		{"INSERT INTO person (name) VALUES (:name)", schema.KindInsert},
		{"UPDATE person SET name = :name", schema.KindUpdate},
		{"DELETE FROM person WHERE person_id = :id", schema.KindDelete},
	}
	for _, c := range cases {
		p, err := ParseQuery(c.sql)
		require.NoError(t, err, c.sql)
		assert.Equal(t, c.kind, p.Kind, c.sql)
	}
}

func TestParseQueryStripsAnnotationLines(t *testing.T) {
	p, err := ParseQuery("-- @name=SelectAll\nSELECT name\nFROM person")
	require.NoError(t, err)
	assert.Equal(t, schema.KindSelect, p.Kind)
}

func TestParseQueryRejectsGarbage(t *testing.T) {
	_, err := ParseQuery("SELEKT oops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SELEKT oops")
}

func TestParseQueryCastMarkers(t *testing.T) {
	p, err := ParseQuery("SELECT CAST(birth_date AS REAL) AS bd FROM person WHERE score > CAST(:min AS INTEGER)")
	require.NoError(t, err)
	require.Len(t, p.CastTargets, 2)

	fields, _, err := p.SelectFields(testIndex())
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "bd", fields[0].Alias)
	assert.Equal(t, "CAST(birth_date AS REAL)", fields[0].Expr)
}

func TestParseQueryNestedCast(t *testing.T) {
	p, err := ParseQuery("SELECT CAST(CAST(score AS INTEGER) AS TEXT) AS s FROM person")
	require.NoError(t, err)
	assert.Len(t, p.CastTargets, 2)

	fields, _, err := p.SelectFields(testIndex())
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "CAST(CAST(score AS INTEGER) AS TEXT)", fields[0].Expr)
}

func TestParseQueryOnConflictDoNothing(t *testing.T) {
	p, err := ParseQuery("INSERT INTO person (name) VALUES (:name) ON CONFLICT(name) DO NOTHING")
	require.NoError(t, err)
	require.NotNil(t, p.OnConflict)
	assert.Equal(t, []string{"name"}, p.OnConflict.Columns)
	assert.True(t, p.OnConflict.DoNothing)
}

func TestParseQueryOnConflictDoUpdate(t *testing.T) {
	p, err := ParseQuery("INSERT INTO person (name, birth_date) VALUES (:name, :bd) " +
		"ON CONFLICT(name) DO UPDATE SET birth_date = :bd WHERE person.name <> ''")
	require.NoError(t, err)
	require.NotNil(t, p.OnConflict)
	assert.Equal(t, []string{"name"}, p.OnConflict.Columns)
	assert.False(t, p.OnConflict.DoNothing)
	require.Len(t, p.OnConflict.Updates, 1)
	assert.NotNil(t, p.OnConflict.Where)
}

func TestParseQueryOnConflictOutsideInsert(t *testing.T) {
	_, err := ParseQuery("UPDATE person SET name = :n ON CONFLICT(name) DO NOTHING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ON CONFLICT outside an insert")
}

func TestParseQueryReturning(t *testing.T) {
	p, err := ParseQuery("INSERT INTO person (name) VALUES (:name) RETURNING person_id, name")
	require.NoError(t, err)
	require.Len(t, p.Returning, 2)

	p, err = ParseQuery("UPDATE person SET name = :name WHERE person_id = :id RETURNING person_id")
	require.NoError(t, err)
	assert.Equal(t, schema.KindUpdate, p.Kind)
	require.Len(t, p.Returning, 1)
}

func TestTargetTable(t *testing.T) {
	cases := []struct {
		sql   string
		table string
	}{
		{"INSERT INTO person (name) VALUES (:name)", "person"},
		{"UPDATE person SET name = :name", "person"},
		{"DELETE FROM comment WHERE comment_id = :id", "comment"},
		{"SELECT name FROM person", ""},
	}
	for _, c := range cases {
		p, err := ParseQuery(c.sql)
		require.NoError(t, err, c.sql)
		assert.Equal(t, c.table, p.TargetTable(), c.sql)
	}
}

func TestSelectFieldsStarExpansion(t *testing.T) {
	p, err := ParseQuery("SELECT * FROM person")
	require.NoError(t, err)
	fields, aliases, err := p.SelectFields(testIndex())
	require.NoError(t, err)

	require.Len(t, fields, 3)
	assert.Equal(t, "person_id", fields[0].Alias)
	assert.Equal(t, "name", fields[1].Alias)
	assert.Equal(t, "birth_date", fields[2].Alias)
	assert.Equal(t, "person", fields[0].Table)
	assert.Equal(t, "person", aliases.Resolve("person"))
}

func TestSelectFieldsQualifiedStar(t *testing.T) {
	p, err := ParseQuery("SELECT c.* FROM person p JOIN comment c ON p.person_id = c.person_id")
	require.NoError(t, err)
	fields, _, err := p.SelectFields(testIndex())
	require.NoError(t, err)

	require.Len(t, fields, 3)
	assert.Equal(t, "comment", fields[0].Table)
	assert.Equal(t, "comment_id", fields[0].Alias)
}

func TestSelectFieldsUnknownStarTable(t *testing.T) {
	p, err := ParseQuery("SELECT * FROM nowhere")
	require.NoError(t, err)
	_, _, err = p.SelectFields(testIndex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestSelectFieldsAliasResolution(t *testing.T) {
	p, err := ParseQuery("SELECT p.name AS person_name FROM person AS p")
	require.NoError(t, err)
	fields, aliases, err := p.SelectFields(testIndex())
	require.NoError(t, err)

	require.Len(t, fields, 1)
	assert.Equal(t, "person", fields[0].Table)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "person_name", fields[0].Alias)
	assert.Equal(t, "person", aliases.Resolve("p"))
}

func TestSelectFieldsDisambiguation(t *testing.T) {
	p, err := ParseQuery("SELECT p.name, c.name FROM person p JOIN comment c ON p.person_id = c.person_id")
	require.NoError(t, err)
	fields, _, err := p.SelectFields(testIndex())
	require.NoError(t, err)

	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Alias)
	assert.False(t, fields[0].Disambiguated())
	assert.Equal(t, "name:2", fields[1].Alias)
	assert.Equal(t, "name", fields[1].BaseAlias())
	assert.True(t, fields[1].Disambiguated())
	assert.Equal(t, "comment", fields[1].Table)
}

func TestSelectFieldsComputedExpression(t *testing.T) {
	p, err := ParseQuery("SELECT count(*) AS total FROM person")
	require.NoError(t, err)
	fields, _, err := p.SelectFields(testIndex())
	require.NoError(t, err)

	require.Len(t, fields, 1)
	assert.Equal(t, "total", fields[0].Alias)
	assert.Equal(t, "count(*)", fields[0].Expr)
	assert.Empty(t, fields[0].Table)
}

func TestDDLName(t *testing.T) {
	kind, name, err := DDLName("CREATE TABLE person (person_id INTEGER)")
	require.NoError(t, err)
	assert.Equal(t, DDLTable, kind)
	assert.Equal(t, "person", name)

	kind, name, err = DDLName("CREATE TABLE IF NOT EXISTS \"person list\" (id INTEGER)")
	require.NoError(t, err)
	assert.Equal(t, DDLTable, kind)
	assert.Equal(t, "person list", name)

	kind, name, err = DDLName("-- @name=ActivePersons\nCREATE VIEW active_persons AS SELECT name FROM person")
	require.NoError(t, err)
	assert.Equal(t, DDLView, kind)
	assert.Equal(t, "active_persons", name)

	_, _, err = DDLName("SELECT 1")
	require.Error(t, err)

	_, _, err = DDLName("CREATE INDEX ix ON person (name)")
	require.Error(t, err)
}

func TestSplitCreateView(t *testing.T) {
	sel, err := SplitCreateView("CREATE VIEW v AS SELECT name FROM person WHERE name <> ''")
	require.NoError(t, err)
	assert.Equal(t, "select name FROM person WHERE name <> ''", sel)

	_, err = SplitCreateView("CREATE VIEW v (name)")
	require.Error(t, err)
}
