package host

import (
	"regexp"
	"strings"
)

var (
	directKeywords = []string{"CREATE", "DROP", "ALTER", "GRANT", "REVOKE", "COMMENT"}
	queryKeywords  = []string{"SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN", "SHOW", "DESCRIBE"}

	insertRe = regexp.MustCompile(`(?is)^\s*INSERT\s+(?:OR\s+\w+\s+)?INTO\s+([A-Za-z_]\w*)\s*\(([^)]*)\)\s*VALUES\s*\((.*)\)\s*;?\s*$`)
	updateRe = regexp.MustCompile(`(?is)^\s*UPDATE\s+([A-Za-z_]\w*)\b`)
	fromRe   = regexp.MustCompile(`(?is)\bFROM\s+([A-Za-z_]\w*)\b`)
	joinRe   = regexp.MustCompile(`(?is)\bJOIN\b|\bFROM\s+[A-Za-z_]\w*(?:\s+(?:AS\s+)?[A-Za-z_]\w*)?\s*,`)
	opColRe  = regexp.MustCompile(`(?is)([A-Za-z_]\w*)"?\s*(?:=|<>|!=|<=|>=|<|>|\bLIKE\b|\bIN\s*\(\s*)\s*$`)
)

// firstKeyword returns the upper-cased leading word of sql, skipping
// whitespace, parentheses and line comments.
func firstKeyword(sql string) string {
	s := strings.TrimSpace(sql)
	for strings.HasPrefix(s, "--") || strings.HasPrefix(s, "(") {
		if strings.HasPrefix(s, "(") {
			s = strings.TrimSpace(s[1:])
			continue
		}
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return ""
		}
		s = strings.TrimSpace(s[nl+1:])
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z')
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

func hasKeyword(sql string, keywords []string) bool {
	kw := firstKeyword(sql)
	for _, k := range keywords {
		if kw == k {
			return true
		}
	}
	return false
}

// isDirect reports statements that are run without preparing.
func isDirect(sql string) bool { return hasKeyword(sql, directKeywords) }

// isQuery reports statements that produce a result set.
func isQuery(sql string) bool { return hasKeyword(sql, queryKeywords) }

// placeholders returns the byte offsets of the ? markers in sql outside
// quoted strings, identifiers and comments.
func placeholders(sql string) []int {
	var pos []int
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			for i++; i < len(sql); i++ {
				if sql[i] == c {
					if i+1 < len(sql) && sql[i+1] == c {
						i++
						continue
					}
					break
				}
			}
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				for i < len(sql) && sql[i] != '\n' {
					i++
				}
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				end := strings.Index(sql[i+2:], "*/")
				if end < 0 {
					return pos
				}
				i += end + 3
			}
		case '?':
			pos = append(pos, i)
		}
	}
	return pos
}

// splitTopLevel splits s on commas that are not nested in parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// singleTable returns the table a statement reads or writes when there is
// exactly one.
func singleTable(sql string) string {
	if m := insertRe.FindStringSubmatch(sql); m != nil {
		return m[1]
	}
	if m := updateRe.FindStringSubmatch(sql); m != nil {
		return m[1]
	}
	if joinRe.MatchString(sql) {
		return ""
	}
	if m := fromRe.FindStringSubmatch(sql); m != nil {
		return m[1]
	}
	return ""
}

// parameterColumns guesses, for each placeholder, the column it is compared
// with or inserted into. Unknown positions are left empty.
func parameterColumns(sql string) []string {
	pos := placeholders(sql)
	cols := make([]string, len(pos))

	if m := insertRe.FindStringSubmatch(sql); m != nil {
		names := splitTopLevel(m[2])
		values := splitTopLevel(m[3])
		p := 0
		for i, v := range values {
			n := len(placeholders(v))
			if v == "?" && i < len(names) && p < len(cols) {
				cols[p] = strings.Trim(names[i], "\"`")
			}
			p += n
		}
		return cols
	}

	for i, at := range pos {
		if m := opColRe.FindStringSubmatch(sql[:at]); m != nil {
			cols[i] = m[1]
		}
	}
	return cols
}
