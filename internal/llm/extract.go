package llm

import (
	"regexp"
	"strings"
)

var (
	codeBlockPattern = regexp.MustCompile(`(?is)` + "```" + `(?:sql)?\s*\n?(.*?)\n?` + "```")
	bareSQLPattern   = regexp.MustCompile(`(?is)(?:^|\n)\s*((?:WITH|SELECT)\s+.*?)(?:;|$)`)
)

// extractSQL pulls a SQL statement out of raw LLM text using three
// strategies in order: a fenced ```sql (or bare ```) code block, a bare
// SELECT/WITH statement starting a line of plain text, or the entire trimmed content if it
// already looks like SQL. Returns "" if none of the strategies match.
func extractSQL(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	if m := codeBlockPattern.FindStringSubmatch(content); m != nil {
		return normalizeSQL(m[1])
	}

	if m := bareSQLPattern.FindStringSubmatch(content); m != nil {
		return normalizeSQL(m[1])
	}

	upper := strings.ToUpper(content)
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
		return normalizeSQL(content)
	}

	return ""
}

// normalizeSQL trims whitespace and collapses any number of trailing
// semicolons down to exactly one, matching the original's
// rstrip(";") + ";" behavior.
func normalizeSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimRight(sql, ";")
	return sql + ";"
}
