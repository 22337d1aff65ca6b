package validator

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mobiletoly/sqlitenow-go/database"
	"github.com/mobiletoly/sqlitenow-go/introspect"
	"github.com/mobiletoly/sqlitenow-go/loader"
	"github.com/mobiletoly/sqlitenow-go/resolve"
	"github.com/mobiletoly/sqlitenow-go/schema"
	"github.com/mobiletoly/sqlitenow-go/sqlparse"
)

// BuildSchema executes every schema statement against a throwaway in-process
// engine, introspects the resulting objects, and assembles the immutable
// table/view models. DDL that the engine rejects aborts the run with the
// offending statement attached.
func BuildSchema(sources []loader.SchemaSource) ([]*schema.Table, []*schema.View, error) {
	db, err := database.OpenMemory()
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	for _, src := range sources {
		if _, err := db.Exec(src.SQL); err != nil {
			return nil, nil, fmt.Errorf("%s: DDL does not execute: %v\n%s", src.File, err, src.SQL)
		}
	}

	var tables []*schema.Table
	for _, src := range sources {
		if src.Kind != sqlparse.DDLTable {
			continue
		}
		t, err := buildTable(db, src)
		if err != nil {
			return nil, nil, err
		}
		tables = append(tables, t)
	}

	ix := resolve.NewTableIndex(tables)
	var views []*schema.View
	for _, src := range sources {
		if src.Kind != sqlparse.DDLView {
			continue
		}
		v, err := buildView(ix, src)
		if err != nil {
			return nil, nil, err
		}
		views = append(views, v)
	}
	return tables, views, nil
}

func buildTable(db *sql.DB, src loader.SchemaSource) (*schema.Table, error) {
	cols, err := introspect.TableColumns(db, src.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", src.File, err)
	}
	t := &schema.Table{
		Name:        src.Name,
		SQL:         src.SQL,
		Columns:     cols,
		Annotations: src.Annotations,
	}
	for name, rec := range src.Columns {
		col := t.Column(name)
		if col == nil {
			return nil, fmt.Errorf("%s: annotation on unknown column %q of table %s", src.File, name, src.Name)
		}
		col.Annotations = rec
	}
	if len(src.Dynamic) > 0 {
		return nil, fmt.Errorf("%s: dynamic fields are not allowed on table %s", src.File, src.Name)
	}
	return t, nil
}

func buildView(ix *resolve.TableIndex, src loader.SchemaSource) (*schema.View, error) {
	selectSQL, err := sqlparse.SplitCreateView(src.SQL)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", src.File, err)
	}
	parsed, err := sqlparse.ParseQuery(selectSQL)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", src.File, err)
	}
	fields, _, err := parsed.SelectFields(ix)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", src.File, err)
	}
	ix.FillOwnerTables(fields)
	for i := range fields {
		if rec, ok := src.Columns[strings.ToLower(fields[i].BaseAlias())]; ok {
			fields[i].Annotations = rec
		}
	}
	return &schema.View{
		Name:          src.Name,
		SQL:           src.SQL,
		Fields:        fields,
		DynamicFields: src.Dynamic,
		Annotations:   src.Annotations,
	}, nil
}
