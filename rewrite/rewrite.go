package rewrite

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/mobiletoly/sqlitenow-go/sqlparse"
)

// Result is the outcome of rewriting one statement's named bind parameters
// into positional form.
type Result struct {
	// SQL is the rewritten statement with `?` placeholders.
	SQL string
	// Parameters lists the original parameter names in strict left-to-right
	// occurrence order. Duplicates are preserved: a parameter used three
	// times produces three entries, all bound to the same input value by the
	// consumer of this metadata.
	Parameters []string
	// CastTypes maps a parameter name to the SQL cast type it was wrapped
	// in, when any.
	CastTypes map[string]string
}

type rewriter struct {
	parsed *sqlparse.Parsed
	params []string
	casts  map[string]string
	err    error
}

// Rewrite walks a parsed statement and replaces named bind variables with
// positional placeholders. `IN (:p)` becomes a json_each subquery expansion
// so a variable-length collection binds through one positional parameter.
// Inserts are re-serialized bespoke because the generic pretty-printer cannot
// reproduce ON CONFLICT together with RETURNING. Unrecognized shapes fail
// fast; silent partial rewriting would emit mismatched placeholder counts.
func Rewrite(p *sqlparse.Parsed) (*Result, error) {
	r := &rewriter{parsed: p, casts: map[string]string{}}

	var sql string
	if p.Insert != nil {
		sql = r.insertSQL(p)
	} else {
		buf := sqlparser.NewTrackedBuffer(r.format)
		buf.Myprintf("%v", p.Stmt)
		sql = buf.String()
	}
	if p.Insert == nil && p.Returning != nil {
		buf := sqlparser.NewTrackedBuffer(r.format)
		buf.Myprintf("%v", p.Returning)
		sql += " RETURNING " + buf.String()
	}
	if r.err != nil {
		return nil, fmt.Errorf("rewrite %q: %v", p.SQL, r.err)
	}
	return &Result{SQL: sql, Parameters: r.params, CastTypes: r.casts}, nil
}

// format is the bind-parameter visitor installed into every pretty-printing
// pass, bespoke insert re-serialization included.
func (r *rewriter) format(buf *sqlparser.TrackedBuffer, node sqlparser.SQLNode) {
	switch v := node.(type) {
	case *sqlparser.SQLVal:
		if v.Type == sqlparser.ValArg {
			r.params = append(r.params, paramName(v))
			buf.WriteString("?")
			return
		}
	case *sqlparser.ConvertExpr:
		typ := r.parsed.CastTypeText(v.Type)
		if name, ok := bindName(v.Expr); ok {
			r.casts[name] = typ
		}
		buf.Myprintf("CAST(%v AS ", v.Expr)
		buf.WriteString(typ)
		buf.WriteString(")")
		return
	case *sqlparser.ComparisonExpr:
		if v.Operator == sqlparser.InStr || v.Operator == sqlparser.NotInStr {
			if name, ok := singleBindTuple(v.Right); ok {
				r.params = append(r.params, name)
				buf.Myprintf("%v ", v.Left)
				buf.WriteString(v.Operator)
				buf.WriteString(" (SELECT value FROM json_each(?))")
				return
			}
		}
	}
	node.Format(buf)
}

// insertSQL re-emits an insert manually: INSERT INTO <table> (<cols>)
// VALUES (<exprs>), then the conflict-resolution clause with each assignment
// expression passed back through the same visitor, then RETURNING items
// verbatim.
func (r *rewriter) insertSQL(p *sqlparse.Parsed) string {
	ins := p.Insert
	if ins.Action != sqlparser.InsertStr {
		r.err = fmt.Errorf("unsupported insert action %q", ins.Action)
		return ""
	}
	rows, ok := ins.Rows.(sqlparser.Values)
	if !ok {
		r.err = fmt.Errorf("unsupported insert row source %T (only VALUES lists can be rewritten)", ins.Rows)
		return ""
	}
	buf := sqlparser.NewTrackedBuffer(r.format)
	buf.Myprintf("INSERT INTO %v", ins.Table)
	if len(ins.Columns) > 0 {
		buf.WriteString(" (")
		for i, col := range ins.Columns {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.Myprintf("%v", col)
		}
		buf.WriteString(")")
	}
	buf.WriteString(" VALUES ")
	for i, tuple := range rows {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.Myprintf("%v", tuple)
	}
	if c := p.OnConflict; c != nil {
		buf.WriteString(" ON CONFLICT")
		if len(c.Columns) > 0 {
			buf.WriteString("(" + strings.Join(c.Columns, ", ") + ")")
		}
		if c.DoNothing {
			buf.WriteString(" DO NOTHING")
		} else {
			buf.WriteString(" DO UPDATE SET ")
			buf.Myprintf("%v", c.Updates)
			if c.Where != nil {
				buf.Myprintf("%v", c.Where)
			}
		}
	}
	if p.Returning != nil {
		buf.WriteString(" RETURNING ")
		buf.Myprintf("%v", p.Returning)
	}
	return buf.String()
}

func paramName(v *sqlparser.SQLVal) string {
	return strings.TrimPrefix(string(v.Val), ":")
}

func bindName(expr sqlparser.Expr) (string, bool) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.ValArg {
		return "", false
	}
	return paramName(v), true
}

func singleBindTuple(expr sqlparser.Expr) (string, bool) {
	tuple, ok := expr.(sqlparser.ValTuple)
	if !ok || len(tuple) != 1 {
		return "", false
	}
	return bindName(tuple[0])
}
