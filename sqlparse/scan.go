package sqlparse

import (
	"fmt"
	"strings"
	"unicode"
)

// Text-level scanning helpers for the dialect shim. The shim has to carve
// SQLite-only clauses (ON CONFLICT, RETURNING, SQLite cast targets) out of
// the statement text before the MySQL-dialect parser sees it, so these
// helpers respect string literals, quoted identifiers and parenthesis depth.

func isIdentChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// skipQuoted returns the index just past the quoted region starting at i.
// Doubling the quote character escapes it, SQLite style.
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

// matchParen returns the index of the ')' matching the '(' at open.
func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'', '"', '`':
			i = skipQuoted(s, i) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses in %q", s)
}

// keywordAt reports whether the keyword starts at i as a whole word,
// case-insensitively.
func keywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isIdentChar(s[i-1]) {
		return false
	}
	if i+len(kw) < len(s) && isIdentChar(s[i+len(kw)]) {
		return false
	}
	return true
}

// findTopLevel locates the first depth-0 occurrence of a keyword sequence
// (words separated by arbitrary whitespace). Returns the start index and the
// index just past the sequence, or -1.
func findTopLevel(s string, words ...string) (int, int) {
	depth := 0
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
		if depth != 0 || !keywordAt(s, i, words[0]) {
			continue
		}
		j := i + len(words[0])
		matched := true
		for _, w := range words[1:] {
			k := j
			for k < len(s) && unicode.IsSpace(rune(s[k])) {
				k++
			}
			if k == j || !keywordAt(s, k, w) {
				matched = false
				break
			}
			j = k + len(w)
		}
		if matched {
			return i, j
		}
	}
	return -1, -1
}

// identAt reads an identifier (optionally quoted) starting at or after i,
// returning the bare name and the index just past it.
func identAt(s string, i int) (string, int) {
	for i < len(s) && unicode.IsSpace(rune(s[i])) {
		i++
	}
	if i >= len(s) {
		return "", i
	}
	if s[i] == '"' || s[i] == '`' || s[i] == '[' {
		close := byte('"')
		if s[i] == '`' {
			close = '`'
		} else if s[i] == '[' {
			close = ']'
		}
		j := i + 1
		for j < len(s) && s[j] != close {
			j++
		}
		return s[i+1 : j], j + 1
	}
	j := i
	for j < len(s) && isIdentChar(s[j]) {
		j++
	}
	return s[i:j], j
}

// stripLineComments removes `--` line comments (annotation lines included)
// and collapses the remainder into single-line SQL.
func stripLineComments(sql string) string {
	var out []string
	for _, line := range strings.Split(sql, "\n") {
		if i := commentStart(line); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " ")
}

func commentStart(line string) int {
	for i := 0; i+1 < len(line); i++ {
		switch line[i] {
		case '\'', '"', '`':
			i = skipQuoted(line, i) - 1
		case '-':
			if line[i+1] == '-' {
				return i
			}
		}
	}
	return -1
}
