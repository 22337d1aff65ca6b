package analyze

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/xwb1989/sqlparser"

	"github.com/mobiletoly/sqlitenow-go/adapter"
	"github.com/mobiletoly/sqlitenow-go/annotation"
	"github.com/mobiletoly/sqlitenow-go/loader"
	"github.com/mobiletoly/sqlitenow-go/mapping"
	"github.com/mobiletoly/sqlitenow-go/resolve"
	"github.com/mobiletoly/sqlitenow-go/rewrite"
	"github.com/mobiletoly/sqlitenow-go/schema"
	"github.com/mobiletoly/sqlitenow-go/sqlparse"
)

// FieldInfo is one resolved output field: the typed view the generator
// consumes.
type FieldInfo struct {
	Field       schema.Field
	Property    string
	GoType      string
	Nullable    bool
	SQLNullable bool
	Adapter     bool
	// AdapterRaw is the raw converter name derived for this field; converter
	// lookups go through Model.OutputAdapterName so they consult the
	// statement's computed assignment instead of re-canonicalizing ad hoc.
	AdapterRaw string
	// Overrides is the generic annotation mapping merged from the field's
	// override record.
	Overrides map[string]any
}

// Model is the fully resolved semantic model of one statement. All derived
// pieces are computed fresh per statement; nothing here mutates the shared
// table index.
type Model struct {
	Source    loader.QuerySource
	Parsed    *sqlparse.Parsed
	Statement *schema.Statement
	Rewrite   *rewrite.Result
	// Fields is the resolved output field list (selects, and RETURNING
	// clauses of writes).
	Fields  []FieldInfo
	Plan    *mapping.Plan
	Aliases sqlparse.AliasMap
	// ParamOrder lists distinct parameter names by first occurrence;
	// ParamTypes resolves each to a Go type.
	ParamOrder []string
	ParamTypes map[string]string
	Adapters   *adapter.Assignment
}

// Statement runs the full per-statement pipeline: parse, rewrite, resolve,
// plan, and converter-name assignment. The table index must be fully built
// before the first call; statements are independent of each other afterwards.
func Statement(ix *resolve.TableIndex, src loader.QuerySource) (*Model, error) {
	parsed, err := sqlparse.ParseQuery(src.SQL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %v", src.Name, err)
	}
	rew, err := rewrite.Rewrite(parsed)
	if err != nil {
		return nil, fmt.Errorf("query %s: %v", src.Name, err)
	}

	m := &Model{
		Source:     src,
		Parsed:     parsed,
		Rewrite:    rew,
		ParamTypes: map[string]string{},
	}

	var fields []schema.Field
	if parsed.Kind == schema.KindSelect {
		fields, m.Aliases, err = parsed.SelectFields(ix)
		if err != nil {
			return nil, fmt.Errorf("query %s: %v", src.Name, err)
		}
	} else if parsed.Returning != nil {
		fields, err = returningFields(parsed, ix)
		if err != nil {
			return nil, fmt.Errorf("query %s: %v", src.Name, err)
		}
	}
	attachAnnotations(fields, src.Fields)
	ix.FillOwnerTables(fields)

	if parsed.Kind == schema.KindSelect {
		if err := checkDynamics(src); err != nil {
			return nil, fmt.Errorf("query %s: %v", src.Name, err)
		}
		m.Plan, err = mapping.PlanStatement(fields, src.Dynamic)
		if err != nil {
			return nil, fmt.Errorf("query %s: %v", src.Name, err)
		}
	}

	m.Statement = &schema.Statement{
		Name:          src.Name,
		Kind:          parsed.Kind,
		SQL:           src.SQL,
		Annotations:   src.Annotations,
		Fields:        fields,
		DynamicFields: src.Dynamic,
	}

	var configs []adapter.ParamConfig
	for _, f := range fields {
		info := resolveField(ix, f)
		if info.Adapter {
			configs = append(configs, adapter.ParamConfig{
				Namespace:  f.Table,
				FuncName:   info.AdapterRaw,
				InputType:  sqlGoType(ix, f),
				OutputType: info.GoType,
			})
		}
		m.Fields = append(m.Fields, info)
	}

	target := parsed.TargetTable()
	for _, name := range rew.Parameters {
		if containsString(m.ParamOrder, name) {
			continue
		}
		m.ParamOrder = append(m.ParamOrder, name)
		m.ParamTypes[name] = paramGoType(ix, parsed, rew, src, name, target)
		if rec, ok := src.Fields[strings.ToLower(name)]; ok && rec.Adapter {
			configs = append(configs, adapter.ParamConfig{
				Namespace:  target,
				FuncName:   adapter.InputRawName(target, name),
				InputType:  m.ParamTypes[name],
				OutputType: columnGoType(ix, target, name),
			})
		}
	}
	m.Adapters = adapter.Assign(configs)
	return m, nil
}

// OutputAdapterName resolves the converter parameter a specific output field
// calls at call sites.
func (m *Model) OutputAdapterName(info FieldInfo) (string, bool) {
	if !info.Adapter {
		return "", false
	}
	return m.Adapters.ResolveOutputName(info.AdapterRaw, info.Field.Table)
}

func checkDynamics(src loader.QuerySource) error {
	for _, d := range src.Dynamic {
		if d.Annotations.PropertyType == nil {
			return fmt.Errorf("dynamic field %q missing required `type=` annotation", d.Name)
		}
	}
	return nil
}

func attachAnnotations(fields []schema.Field, records map[string]annotation.FieldAnnotations) {
	for i := range fields {
		if rec, ok := records[strings.ToLower(fields[i].BaseAlias())]; ok {
			fields[i].Annotations = rec
			continue
		}
		if fields[i].Name != "" {
			if rec, ok := records[strings.ToLower(fields[i].Name)]; ok {
				fields[i].Annotations = rec
			}
		}
	}
}

func resolveField(ix *resolve.TableIndex, f schema.Field) FieldInfo {
	info := FieldInfo{
		Field:       f,
		GoType:      resolve.FieldType(ix, f),
		Nullable:    resolve.FieldNullable(ix, f),
		SQLNullable: resolve.FieldSQLNullable(ix, f),
		Overrides:   map[string]any{},
	}
	col := ix.FindColumn(f)
	info.Property = propertyName(f, col)
	info.Adapter = f.Annotations.Adapter || col != nil && col.Annotations.Adapter
	if info.Adapter {
		info.AdapterRaw = adapter.OutputRawName(f.Table, info.Property)
	}
	f.Annotations.Merge(info.Overrides)
	if col != nil {
		merged := map[string]any{}
		col.Annotations.Merge(merged)
		for k, v := range merged {
			if _, own := info.Overrides[k]; !own {
				info.Overrides[k] = v
			}
		}
	}
	return info
}

func propertyName(f schema.Field, col *schema.Column) string {
	if f.Annotations.Property != nil {
		return *f.Annotations.Property
	}
	if col != nil && col.Annotations.Property != nil {
		return *col.Annotations.Property
	}
	return lowerCamel(f.BaseAlias())
}

func lowerCamel(s string) string {
	if strings.ContainsAny(s, "_- ") {
		return inflect.CamelizeDownFirst(strings.ToLower(s))
	}
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// sqlGoType is the binding-side Go type of a field's raw column value.
func sqlGoType(ix *resolve.TableIndex, f schema.Field) string {
	if col := ix.FindColumn(f); col != nil {
		return resolve.GoType(col.Type)
	}
	return resolve.DefaultType
}

func columnGoType(ix *resolve.TableIndex, table, column string) string {
	if t := ix.Table(table); t != nil {
		if col := t.Column(column); col != nil {
			return resolve.GoType(col.Type)
		}
	}
	return resolve.DefaultType
}

// paramGoType resolves a bind parameter's Go type: an explicit cast wins,
// then a `type=` annotation, then the column the name matches (target table
// first), then the default.
func paramGoType(ix *resolve.TableIndex, parsed *sqlparse.Parsed, rew *rewrite.Result, src loader.QuerySource, name, target string) string {
	if cast, ok := rew.CastTypes[name]; ok {
		return resolve.GoType(cast)
	}
	if rec, ok := src.Fields[strings.ToLower(name)]; ok && rec.PropertyType != nil {
		return *rec.PropertyType
	}
	if target != "" {
		if t := ix.Table(target); t != nil {
			if col := t.Column(name); col != nil {
				return resolve.GoType(col.Type)
			}
		}
	}
	if col := ix.FindColumn(schema.Field{Name: name, Alias: name}); col != nil {
		return resolve.GoType(col.Type)
	}
	return resolve.DefaultType
}

func returningFields(parsed *sqlparse.Parsed, ix *resolve.TableIndex) ([]schema.Field, error) {
	target := parsed.TargetTable()
	var fields []schema.Field
	for _, se := range parsed.Returning {
		switch v := se.(type) {
		case *sqlparser.StarExpr:
			t := ix.Table(target)
			if t == nil {
				return nil, fmt.Errorf("cannot expand RETURNING *: unknown table %q", target)
			}
			for _, col := range t.Columns {
				fields = append(fields, schema.Field{Table: t.Name, Name: col.Name, Alias: col.Name})
			}
		case *sqlparser.AliasedExpr:
			if col, ok := v.Expr.(*sqlparser.ColName); ok {
				f := schema.Field{Table: target, Name: col.Name.String(), Alias: col.Name.String()}
				if !v.As.IsEmpty() {
					f.Alias = v.As.String()
				}
				fields = append(fields, f)
				continue
			}
			return nil, fmt.Errorf("unsupported RETURNING item %q", sqlparser.String(v))
		default:
			return nil, fmt.Errorf("unsupported RETURNING item %T", se)
		}
	}
	return fields, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
