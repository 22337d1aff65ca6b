package sqlparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/mobiletoly/sqlitenow-go/schema"
)

// Parsed wraps one parsed statement together with the SQLite-only clauses the
// dialect shim carved out of the text before the parse.
type Parsed struct {
	Kind schema.StatementKind
	SQL  string // original statement text
	Stmt sqlparser.Statement

	// Insert is set for insert statements.
	Insert *sqlparser.Insert
	// OnConflict holds the upsert clause of an insert, nil when absent.
	OnConflict *ConflictClause
	// Returning holds the RETURNING items of any DML statement, nil when
	// absent.
	Returning sqlparser.SelectExprs
	// CastTargets maps shim markers back to the SQLite cast types the parser
	// grammar cannot express.
	CastTargets map[int]string
}

// ConflictClause is the structured form of `ON CONFLICT (...) DO ...`.
type ConflictClause struct {
	Columns   []string
	DoNothing bool
	Updates   sqlparser.UpdateExprs
	Where     *sqlparser.Where
}

// castMarkerBase starts the marker id space. The shim rewrites every
// `CAST(x AS T)` target to `CHAR(<marker>)` because the parser grammar only
// accepts MySQL cast targets; the rewriter's formatter restores T on output.
const castMarkerBase = 24001

// IsCastMarker recognizes a shimmed cast target and resolves the original
// SQLite type.
func (p *Parsed) IsCastMarker(ct *sqlparser.ConvertType) (string, bool) {
	if !strings.EqualFold(ct.Type, "char") || ct.Length == nil || ct.Length.Type != sqlparser.IntVal {
		return "", false
	}
	id, err := strconv.Atoi(string(ct.Length.Val))
	if err != nil || id < castMarkerBase {
		return "", false
	}
	t, ok := p.CastTargets[id]
	return t, ok
}

// ParseQuery parses one annotated DML statement. Annotation/comment lines
// must already be stripped by the loader.
func ParseQuery(sql string) (*Parsed, error) {
	p := &Parsed{SQL: sql, CastTargets: map[int]string{}}
	text := stripLineComments(sql)

	var err error
	text, err = extractCasts(text, p.CastTargets)
	if err != nil {
		return nil, fmt.Errorf("parse query %q: %v", sql, err)
	}

	var returning string
	text, returning = splitReturning(text)

	var conflict string
	text, conflict = splitOnConflict(text)

	stmt, err := sqlparser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse query %q: %v", sql, err)
	}
	p.Stmt = stmt

	switch s := stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		p.Kind = schema.KindSelect
	case *sqlparser.Insert:
		p.Kind = schema.KindInsert
		p.Insert = s
	case *sqlparser.Update:
		p.Kind = schema.KindUpdate
	case *sqlparser.Delete:
		p.Kind = schema.KindDelete
	default:
		return nil, fmt.Errorf("parse query %q: unsupported statement kind %T", sql, stmt)
	}

	if conflict != "" {
		if p.Kind != schema.KindInsert {
			return nil, fmt.Errorf("parse query %q: ON CONFLICT outside an insert", sql)
		}
		p.OnConflict, err = parseConflict(conflict, p.Insert.Table.Name.String())
		if err != nil {
			return nil, fmt.Errorf("parse query %q: %v", sql, err)
		}
	}
	if returning != "" {
		p.Returning, err = parseReturning(returning)
		if err != nil {
			return nil, fmt.Errorf("parse query %q: %v", sql, err)
		}
	}
	return p, nil
}

// extractCasts rewrites every CAST target to a CHAR(<marker>) the parser
// accepts, recording the original type text by marker id.
func extractCasts(sql string, targets map[int]string) (string, error) {
	var out strings.Builder
	next := castMarkerBase + len(targets)
	i := 0
	for i < len(sql) {
		switch sql[i] {
		case '\'', '"', '`':
			j := skipQuoted(sql, i)
			out.WriteString(sql[i:j])
			i = j
			continue
		}
		if !keywordAt(sql, i, "CAST") {
			out.WriteByte(sql[i])
			i++
			continue
		}
		open := i + 4
		for open < len(sql) && (sql[open] == ' ' || sql[open] == '\t') {
			open++
		}
		if open >= len(sql) || sql[open] != '(' {
			out.WriteString(sql[i : i+4])
			i += 4
			continue
		}
		close, err := matchParen(sql, open)
		if err != nil {
			return "", err
		}
		inner := sql[open+1 : close]
		asStart, asEnd := lastTopLevelAs(inner)
		if asStart < 0 {
			return "", fmt.Errorf("CAST without AS in %q", sql[i:close+1])
		}
		expr, err := extractCasts(inner[:asStart], targets)
		if err != nil {
			return "", err
		}
		// nested extraction may have consumed marker ids
		next = castMarkerBase + len(targets)
		targets[next] = strings.TrimSpace(inner[asEnd:])
		out.WriteString("CAST(")
		out.WriteString(strings.TrimSpace(expr))
		out.WriteString(" AS CHAR(")
		out.WriteString(strconv.Itoa(next))
		out.WriteString("))")
		i = close + 1
	}
	return out.String(), nil
}

// lastTopLevelAs finds the rightmost depth-0 AS keyword inside a CAST body.
func lastTopLevelAs(s string) (int, int) {
	depth := 0
	start, end := -1, -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = skipQuoted(s, i) - 1
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth == 0 && keywordAt(s, i, "AS") {
			start, end = i, i+2
		}
	}
	return start, end
}

func splitReturning(sql string) (string, string) {
	start, end := findTopLevel(sql, "RETURNING")
	if start < 0 {
		return sql, ""
	}
	return strings.TrimSpace(sql[:start]), strings.TrimSpace(sql[end:])
}

func splitOnConflict(sql string) (string, string) {
	start, end := findTopLevel(sql, "ON", "CONFLICT")
	if start < 0 {
		return sql, ""
	}
	return strings.TrimSpace(sql[:start]), strings.TrimSpace(sql[end:])
}

// parseConflict decodes the clause text following ON CONFLICT. The update
// assignments are re-parsed through the statement parser (as a synthetic
// UPDATE) so nested expressions keep their visitable tree form.
func parseConflict(text, table string) (*ConflictClause, error) {
	c := &ConflictClause{}
	rest := strings.TrimSpace(text)
	if strings.HasPrefix(rest, "(") {
		close, err := matchParen(rest, 0)
		if err != nil {
			return nil, fmt.Errorf("conflict target: %v", err)
		}
		for _, col := range strings.Split(rest[1:close], ",") {
			name, _ := identAt(col, 0)
			if name == "" {
				return nil, fmt.Errorf("empty column in conflict target %q", text)
			}
			c.Columns = append(c.Columns, name)
		}
		rest = strings.TrimSpace(rest[close+1:])
	}
	if !keywordAt(rest, 0, "DO") {
		return nil, fmt.Errorf("expected DO in conflict clause %q", text)
	}
	rest = strings.TrimSpace(rest[2:])
	if keywordAt(rest, 0, "NOTHING") {
		c.DoNothing = true
		return c, nil
	}
	if _, end := findTopLevel(rest, "UPDATE", "SET"); end > 0 {
		synthetic := "update " + table + " set " + strings.TrimSpace(rest[end:])
		stmt, err := sqlparser.Parse(synthetic)
		if err != nil {
			return nil, fmt.Errorf("conflict update assignments %q: %v", rest, err)
		}
		upd, ok := stmt.(*sqlparser.Update)
		if !ok {
			return nil, fmt.Errorf("conflict update assignments %q: unexpected %T", rest, stmt)
		}
		c.Updates = upd.Exprs
		c.Where = upd.Where
		return c, nil
	}
	return nil, fmt.Errorf("unsupported conflict action %q", text)
}

func parseReturning(text string) (sqlparser.SelectExprs, error) {
	stmt, err := sqlparser.Parse("select " + text)
	if err != nil {
		return nil, fmt.Errorf("returning clause %q: %v", text, err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, fmt.Errorf("returning clause %q: unexpected %T", text, stmt)
	}
	return sel.SelectExprs, nil
}

// TargetTable names the table a DML statement writes to ("" for selects).
func (p *Parsed) TargetTable() string {
	switch s := p.Stmt.(type) {
	case *sqlparser.Insert:
		return s.Table.Name.String()
	case *sqlparser.Update:
		return firstTableName(s.TableExprs)
	case *sqlparser.Delete:
		return firstTableName(s.TableExprs)
	}
	return ""
}

func firstTableName(exprs sqlparser.TableExprs) string {
	for _, expr := range exprs {
		if at, ok := expr.(*sqlparser.AliasedTableExpr); ok {
			if tn, ok := at.Expr.(sqlparser.TableName); ok {
				return tn.Name.String()
			}
		}
	}
	return ""
}

// DDLKind tags a schema definition statement.
type DDLKind int

const (
	DDLTable DDLKind = iota
	DDLView
)

// DDLName extracts the kind and object name out of a CREATE statement
// without fully parsing it; the authoritative column list comes from the
// in-process engine after the DDL executes.
func DDLName(sql string) (DDLKind, string, error) {
	text := stripLineComments(sql)
	if !keywordAt(text, 0, "CREATE") {
		return 0, "", fmt.Errorf("not a CREATE statement: %q", sql)
	}
	i := len("CREATE")
	kind := DDLTable
	if start, end := findTopLevel(text, "VIEW"); start >= 0 {
		kind = DDLView
		i = end
	} else if start, end := findTopLevel(text, "TABLE"); start >= 0 {
		i = end
	} else {
		return 0, "", fmt.Errorf("unsupported DDL statement: %q", sql)
	}
	if start, end := findTopLevel(text, "IF", "NOT", "EXISTS"); start >= 0 {
		i = end
	}
	name, _ := identAt(text, i)
	if name == "" {
		return 0, "", fmt.Errorf("missing object name in DDL: %q", sql)
	}
	return kind, name, nil
}

// SplitCreateView returns the select text a CREATE VIEW wraps.
func SplitCreateView(sql string) (string, error) {
	text := stripLineComments(sql)
	start, end := findTopLevel(text, "AS", "SELECT")
	if start < 0 {
		return "", fmt.Errorf("CREATE VIEW without AS SELECT: %q", sql)
	}
	return "select " + strings.TrimSpace(text[end:]), nil
}
