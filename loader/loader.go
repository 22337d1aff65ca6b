package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mobiletoly/sqlitenow-go/annotation"
	"github.com/mobiletoly/sqlitenow-go/schema"
	"github.com/mobiletoly/sqlitenow-go/sqlparse"
)

// QuerySource is one named, annotated query statement as read from disk.
type QuerySource struct {
	Name        string
	File        string
	SQL         string
	Annotations annotation.StatementAnnotations
	// Fields maps lower-cased field names to their annotation records.
	Fields  map[string]annotation.FieldAnnotations
	Dynamic []schema.DynamicField
}

// SchemaSource is one CREATE TABLE/VIEW statement with its annotations.
type SchemaSource struct {
	Kind        sqlparse.DDLKind
	Name        string
	File        string
	SQL         string
	Annotations annotation.StatementAnnotations
	// Columns maps lower-cased column/field names to annotation records.
	Columns map[string]annotation.FieldAnnotations
	Dynamic []schema.DynamicField
}

// LoadQueries reads every .sql file under dir and returns its annotated
// statements. Each query must carry a `name=` statement annotation.
func LoadQueries(dir string) ([]QuerySource, error) {
	var queries []QuerySource
	err := eachStatement(dir, func(file, stmt string) error {
		top, fields, dynamics, err := dissect(stmt, false)
		if err != nil {
			return fmt.Errorf("%s: %v", file, err)
		}
		if top.Name == nil || *top.Name == "" {
			return fmt.Errorf("%s: query missing required `name=` annotation:\n%s", file, stmt)
		}
		queries = append(queries, QuerySource{
			Name:        *top.Name,
			File:        file,
			SQL:         stmt,
			Annotations: top,
			Fields:      fields,
			Dynamic:     dynamics,
		})
		return nil
	})
	return queries, err
}

// LoadSchema reads every .sql file under dir and returns its CREATE
// statements. Inner annotation lines without a `field=` attachment key bind
// to the column declared on the next line.
func LoadSchema(dir string) ([]SchemaSource, error) {
	var sources []SchemaSource
	err := eachStatement(dir, func(file, stmt string) error {
		kind, name, err := sqlparse.DDLName(stmt)
		if err != nil {
			return fmt.Errorf("%s: %v", file, err)
		}
		top, columns, dynamics, err := dissect(stmt, true)
		if err != nil {
			return fmt.Errorf("%s: %v", file, err)
		}
		sources = append(sources, SchemaSource{
			Kind:        kind,
			Name:        name,
			File:        file,
			SQL:         stmt,
			Annotations: top,
			Columns:     columns,
			Dynamic:     dynamics,
		})
		return nil
	})
	return sources, err
}

func eachStatement(dir string, fn func(file, stmt string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file %s: %v", path, err)
		}
		for _, stmt := range SplitStatements(string(content)) {
			if err := fn(path, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// SplitStatements cuts file content into statements on depth-0 semicolons,
// keeping comment lines attached to the statement they precede.
func SplitStatements(content string) []string {
	var stmts []string
	start := 0
	depth := 0
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\'', '"', '`':
			i = skipQuoted(content, i) - 1
		case '-':
			if i+1 < len(content) && content[i+1] == '-' {
				for i < len(content) && content[i] != '\n' {
					i++
				}
			}
		case '(':
			depth++
		case ')':
			depth--
		case ';':
			if depth == 0 {
				if s := strings.TrimSpace(content[start:i]); s != "" {
					stmts = append(stmts, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(content[start:]); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func skipQuoted(s string, i int) int {
	q := s[i]
	i++
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

// dissect separates a statement's annotation lines from its SQL. Top lines
// precede the first SQL line; inside DDL (positional=true) an annotation
// line without an attachment key binds to the column on the next line.
func dissect(stmt string, positional bool) (annotation.StatementAnnotations, map[string]annotation.FieldAnnotations, []schema.DynamicField, error) {
	var top annotation.StatementAnnotations
	fieldLines := map[string][]string{}
	var fieldOrder []string
	var topLines []string
	var pending []string // positional lines waiting for their column
	sqlSeen := false

	addFieldLine := func(name, line string) {
		key := strings.ToLower(name)
		if _, ok := fieldLines[key]; !ok {
			fieldOrder = append(fieldOrder, key)
		}
		fieldLines[key] = append(fieldLines[key], line)
	}

	for _, line := range strings.Split(stmt, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, annotation.Prefix) {
			if field, rest, ok := annotation.SplitAttachment(trimmed); ok {
				addFieldLine(field, rest)
				continue
			}
			if !sqlSeen {
				topLines = append(topLines, trimmed)
				continue
			}
			if !positional {
				return top, nil, nil, fmt.Errorf("inner annotation without `field=` attachment in query statement: %q", trimmed)
			}
			pending = append(pending, trimmed)
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		sqlSeen = true
		if len(pending) > 0 {
			name := firstIdent(trimmed)
			if name == "" {
				return top, nil, nil, fmt.Errorf("annotation line has no column to attach to: %q", pending[0])
			}
			for _, l := range pending {
				addFieldLine(name, l)
			}
			pending = nil
		}
	}
	if len(pending) > 0 {
		return top, nil, nil, fmt.Errorf("trailing annotation lines attach to no column: %q", pending[0])
	}

	top, err := annotation.ParseStatement(topLines)
	if err != nil {
		return top, nil, nil, err
	}

	fields := map[string]annotation.FieldAnnotations{}
	var dynamics []schema.DynamicField
	for _, name := range fieldOrder {
		rec, err := annotation.ParseField(fieldLines[name])
		if err != nil {
			return top, nil, nil, fmt.Errorf("field %q: %v", name, err)
		}
		if rec.Dynamic {
			dynamics = append(dynamics, schema.DynamicField{Name: name, Annotations: rec})
			continue
		}
		fields[name] = rec
	}
	return top, fields, dynamics, nil
}

// firstIdent reads the leading identifier of a column definition line.
func firstIdent(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if line[0] == '"' || line[0] == '`' || line[0] == '[' {
		close := byte('"')
		if line[0] == '`' {
			close = '`'
		} else if line[0] == '[' {
			close = ']'
		}
		for i := 1; i < len(line); i++ {
			if line[i] == close {
				return line[1:i]
			}
		}
		return ""
	}
	i := 0
	for i < len(line) && (line[i] == '_' || line[i] >= '0' && line[i] <= '9' || line[i] >= 'a' && line[i] <= 'z' || line[i] >= 'A' && line[i] <= 'Z') {
		i++
	}
	return line[:i]
}
