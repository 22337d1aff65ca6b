package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiletoly/sqlitenow-go/annotation"
	"github.com/mobiletoly/sqlitenow-go/loader"
	"github.com/mobiletoly/sqlitenow-go/resolve"
	"github.com/mobiletoly/sqlitenow-go/schema"
)

func strPtr(s string) *string { return &s }

func testIndex() *resolve.TableIndex {
	return resolve.NewTableIndex([]*schema.Table{
		{Name: "person", Columns: []schema.Column{
			{Name: "person_id", Type: "INTEGER", NotNull: true, PrimaryKey: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "birth_date", Type: "TEXT"},
		}},
	})
}

func TestStatementSelect(t *testing.T) {
	src := loader.QuerySource{
		Name: "SelectPersons",
		SQL:  "SELECT person_id, name, birth_date FROM person WHERE person_id = :person_id",
		Fields: map[string]annotation.FieldAnnotations{
			"birth_date": {Adapter: true, PropertyType: strPtr("time.Time")},
		},
	}

	m, err := Statement(testIndex(), src)
	require.NoError(t, err)

	assert.Equal(t, schema.KindSelect, m.Statement.Kind)
	assert.Equal(t, "select person_id, name, birth_date from person where person_id = ?", m.Rewrite.SQL)
	assert.Equal(t, []string{"person_id"}, m.ParamOrder)
	assert.Equal(t, "int64", m.ParamTypes["person_id"])

	require.Len(t, m.Fields, 3)

	id := m.Fields[0]
	assert.Equal(t, "personId", id.Property)
	assert.Equal(t, "int64", id.GoType)
	assert.False(t, id.Nullable)
	assert.False(t, id.SQLNullable)
	assert.False(t, id.Adapter)

	bd := m.Fields[2]
	assert.Equal(t, "birthDate", bd.Property)
	assert.Equal(t, "time.Time", bd.GoType)
	assert.True(t, bd.Nullable)
	assert.True(t, bd.SQLNullable)
	assert.True(t, bd.Adapter)
	assert.Equal(t, "sqlValueToPersonBirthDate", bd.AdapterRaw)

	name, ok := m.OutputAdapterName(bd)
	require.True(t, ok)
	assert.Equal(t, "sqlValueToBirthDate", name)

	require.Len(t, m.Adapters.Configs(), 1)
	cfg := m.Adapters.Configs()[0]
	assert.Equal(t, "string", cfg.InputType)
	assert.Equal(t, "time.Time", cfg.OutputType)
}

func TestStatementDuplicateParameterCollapsesOnce(t *testing.T) {
	src := loader.QuerySource{
		Name: "SearchPersons",
		SQL:  "SELECT name FROM person WHERE name = :q OR birth_date = :q",
	}
	m, err := Statement(testIndex(), src)
	require.NoError(t, err)

	// two occurrences bind positionally, one logical input parameter
	assert.Equal(t, []string{"q", "q"}, m.Rewrite.Parameters)
	assert.Equal(t, []string{"q"}, m.ParamOrder)
}

func TestStatementParamTypeFromCast(t *testing.T) {
	src := loader.QuerySource{
		Name: "SelectByScore",
		SQL:  "SELECT name FROM person WHERE person_id > CAST(:min AS REAL)",
	}
	m, err := Statement(testIndex(), src)
	require.NoError(t, err)
	assert.Equal(t, "float64", m.ParamTypes["min"])
}

func TestStatementParamTypeFromAnnotation(t *testing.T) {
	src := loader.QuerySource{
		Name: "SelectSince",
		SQL:  "SELECT name FROM person WHERE birth_date > :since",
		Fields: map[string]annotation.FieldAnnotations{
			"since": {PropertyType: strPtr("time.Time")},
		},
	}
	m, err := Statement(testIndex(), src)
	require.NoError(t, err)
	assert.Equal(t, "time.Time", m.ParamTypes["since"])
}

func TestStatementInsertWithReturning(t *testing.T) {
	src := loader.QuerySource{
		Name: "InsertPerson",
		SQL:  "INSERT INTO person (name, birth_date) VALUES (:name, :birthDate) RETURNING person_id",
		Fields: map[string]annotation.FieldAnnotations{
			"birthdate": {Adapter: true, PropertyType: strPtr("time.Time")},
		},
	}
	m, err := Statement(testIndex(), src)
	require.NoError(t, err)

	assert.Equal(t, schema.KindInsert, m.Statement.Kind)
	assert.Equal(t, []string{"name", "birthDate"}, m.ParamOrder)
	assert.Equal(t, "time.Time", m.ParamTypes["birthDate"])

	require.Len(t, m.Fields, 1)
	assert.Equal(t, "personId", m.Fields[0].Property)
	assert.Equal(t, "int64", m.Fields[0].GoType)

	// input converter wired for the annotated bind parameter
	require.Len(t, m.Adapters.Configs(), 1)
	cfg := m.Adapters.Configs()[0]
	assert.Equal(t, "personBirthDateToSqlValue", cfg.FuncName)
	assert.Equal(t, "time.Time", cfg.InputType)
	finalName, ok := m.Adapters.Name(cfg)
	require.True(t, ok)
	assert.Equal(t, "personBirthDateToSqlValue", finalName)
}

func TestStatementCollectionParameter(t *testing.T) {
	src := loader.QuerySource{
		Name: "SelectByIds",
		SQL:  "SELECT name FROM person WHERE person_id IN (:ids)",
	}
	m, err := Statement(testIndex(), src)
	require.NoError(t, err)
	assert.Contains(t, m.Rewrite.SQL, "in (SELECT value FROM json_each(?))")
	assert.Equal(t, []string{"ids"}, m.ParamOrder)
}

func TestStatementDynamicFieldPlan(t *testing.T) {
	src := loader.QuerySource{
		Name: "SelectPersonsWithAddress",
		SQL:  "SELECT person_id, name, birth_date AS addr__street FROM person",
		Dynamic: []schema.DynamicField{{
			Name: "address",
			Annotations: annotation.FieldAnnotations{
				Dynamic:           true,
				PropertyType:      strPtr("PersonAddress"),
				MappingType:       strPtr("entity"),
				RemoveAliasPrefix: strPtr("addr__"),
			},
		}},
	}
	m, err := Statement(testIndex(), src)
	require.NoError(t, err)
	require.NotNil(t, m.Plan)
	assert.True(t, m.Plan.IncludesDynamic("address"))
	require.Len(t, m.Plan.PlainFields, 2)
	assert.Equal(t, []string{"addr__street"}, m.Plan.Dynamic[0].SourceColumns)
}

func TestStatementDynamicFieldRequiresType(t *testing.T) {
	src := loader.QuerySource{
		Name: "SelectBroken",
		SQL:  "SELECT name FROM person",
		Dynamic: []schema.DynamicField{{
			Name: "extra",
			Annotations: annotation.FieldAnnotations{
				Dynamic:     true,
				MappingType: strPtr("entity"),
				SourceTable: strPtr("person"),
			},
		}},
	}
	_, err := Statement(testIndex(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required `type=` annotation")
}

func TestStatementRejectsBadSQL(t *testing.T) {
	src := loader.QuerySource{Name: "Broken", SQL: "SELEKT nope"}
	_, err := Statement(testIndex(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query Broken")
}
