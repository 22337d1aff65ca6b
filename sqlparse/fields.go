package sqlparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/mobiletoly/sqlitenow-go/resolve"
	"github.com/mobiletoly/sqlitenow-go/schema"
)

// AliasMap resolves FROM-clause aliases (and bare table names) to table
// names, lower-cased keys.
type AliasMap map[string]string

// Resolve maps a qualifier as written in the query to its table name.
func (m AliasMap) Resolve(qualifier string) string {
	if t, ok := m[strings.ToLower(qualifier)]; ok {
		return t
	}
	return qualifier
}

// SelectFields extracts the ordered output field list of a select statement.
// Star expressions are expanded against the table index in declaration
// order. When a join duplicates an emitted alias, every repeat gets a
// trailing ":<n>" disambiguation suffix (n counts from 2).
func (p *Parsed) SelectFields(ix *resolve.TableIndex) ([]schema.Field, AliasMap, error) {
	sel, ok := p.Stmt.(*sqlparser.Select)
	if !ok {
		return nil, nil, fmt.Errorf("statement %q is not a plain select", p.SQL)
	}
	aliases := AliasMap{}
	var fromOrder []string
	collectTables(sel.From, aliases, &fromOrder)

	var fields []schema.Field
	for _, se := range sel.SelectExprs {
		switch v := se.(type) {
		case *sqlparser.StarExpr:
			expanded, err := p.expandStar(v, ix, aliases, fromOrder)
			if err != nil {
				return nil, nil, err
			}
			fields = append(fields, expanded...)
		case *sqlparser.AliasedExpr:
			fields = append(fields, p.aliasedField(v, aliases))
		default:
			return nil, nil, fmt.Errorf("unsupported select item %T in %q", se, p.SQL)
		}
	}
	disambiguate(fields)
	return fields, aliases, nil
}

func collectTables(node sqlparser.SQLNode, aliases AliasMap, order *[]string) {
	switch v := node.(type) {
	case sqlparser.TableExprs:
		for _, e := range v {
			collectTables(e, aliases, order)
		}
	case *sqlparser.AliasedTableExpr:
		tn, ok := v.Expr.(sqlparser.TableName)
		if !ok {
			return
		}
		name := tn.Name.String()
		aliases[strings.ToLower(name)] = name
		if !v.As.IsEmpty() {
			aliases[strings.ToLower(v.As.String())] = name
		}
		*order = append(*order, name)
	case *sqlparser.ParenTableExpr:
		collectTables(v.Exprs, aliases, order)
	case *sqlparser.JoinTableExpr:
		collectTables(v.LeftExpr, aliases, order)
		collectTables(v.RightExpr, aliases, order)
	}
}

func (p *Parsed) aliasedField(v *sqlparser.AliasedExpr, aliases AliasMap) schema.Field {
	if col, ok := v.Expr.(*sqlparser.ColName); ok {
		f := schema.Field{
			Name:  col.Name.String(),
			Alias: col.Name.String(),
		}
		if !col.Qualifier.Name.IsEmpty() {
			f.Table = aliases.Resolve(col.Qualifier.Name.String())
		}
		if !v.As.IsEmpty() {
			f.Alias = v.As.String()
		}
		return f
	}
	expr := p.formatExpr(v.Expr)
	f := schema.Field{Expr: expr, Alias: expr}
	if !v.As.IsEmpty() {
		f.Alias = v.As.String()
	}
	return f
}

func (p *Parsed) expandStar(v *sqlparser.StarExpr, ix *resolve.TableIndex, aliases AliasMap, fromOrder []string) ([]schema.Field, error) {
	tables := fromOrder
	if !v.TableName.Name.IsEmpty() {
		tables = []string{aliases.Resolve(v.TableName.Name.String())}
	}
	var fields []schema.Field
	for _, name := range tables {
		t := ix.Table(name)
		if t == nil {
			return nil, fmt.Errorf("cannot expand star: unknown table %q in %q", name, p.SQL)
		}
		for _, col := range t.Columns {
			fields = append(fields, schema.Field{Table: t.Name, Name: col.Name, Alias: col.Name})
		}
	}
	return fields, nil
}

// formatExpr renders a computed select item, restoring shimmed cast targets.
func (p *Parsed) formatExpr(expr sqlparser.Expr) string {
	buf := sqlparser.NewTrackedBuffer(func(buf *sqlparser.TrackedBuffer, node sqlparser.SQLNode) {
		if conv, ok := node.(*sqlparser.ConvertExpr); ok {
			buf.Myprintf("CAST(%v AS ", conv.Expr)
			buf.WriteString(p.CastTypeText(conv.Type))
			buf.WriteString(")")
			return
		}
		node.Format(buf)
	})
	buf.Myprintf("%v", expr)
	return buf.String()
}

// CastTypeText renders a cast target, mapping shim markers back to the
// original SQLite type.
func (p *Parsed) CastTypeText(ct *sqlparser.ConvertType) string {
	if t, ok := p.IsCastMarker(ct); ok {
		return t
	}
	out := strings.ToUpper(ct.Type)
	if ct.Length != nil {
		out += "(" + string(ct.Length.Val)
		if ct.Scale != nil {
			out += ", " + string(ct.Scale.Val)
		}
		out += ")"
	}
	return out
}

func disambiguate(fields []schema.Field) {
	counts := map[string]int{}
	for i := range fields {
		key := strings.ToLower(fields[i].Alias)
		counts[key]++
		if n := counts[key]; n > 1 {
			fields[i].Alias += schema.DisambiguationSeparator + strconv.Itoa(n)
		}
	}
}
