package sqlvalidator

import (
	"encoding/json"
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
)

// statementKeyword maps a pg_query parse-tree node type to the uppercase
// keyword used in rejection messages. Types not present here fall back to
// stripping the "Stmt" suffix and upper-casing what remains.
var statementKeyword = map[string]string{
	"InsertStmt":        "INSERT",
	"UpdateStmt":        "UPDATE",
	"DeleteStmt":        "DELETE",
	"CreateStmt":        "CREATE",
	"CreateTableAsStmt": "CREATE",
	"DropStmt":          "DROP",
	"AlterTableStmt":    "ALTER",
	"TruncateStmt":      "TRUNCATE",
}

// writeStatementTypes is the set of node types that perform a write,
// checked both at the top level and anywhere nested (a DELETE hiding
// inside a subquery is rejected the same as one at the top).
var writeStatementTypes = map[string]bool{
	"InsertStmt":        true,
	"UpdateStmt":        true,
	"DeleteStmt":        true,
	"CreateStmt":        true,
	"CreateTableAsStmt": true,
	"DropStmt":          true,
	"AlterTableStmt":    true,
	"TruncateStmt":      true,
}

// SQLValidator is a per-database, stateless-after-construction static
// analyser. It never executes SQL; it only parses and inspects the tree.
type SQLValidator struct {
	security       SecurityConfig
	blockedTables  map[string]bool
	blockedColumns map[string]bool
	allowExplain   bool
}

// New builds a validator for one database, combining the shared
// SecurityConfig with per-database table/column deny-lists.
func New(security SecurityConfig, opts Options) *SQLValidator {
	v := &SQLValidator{
		security:       security,
		blockedTables:  toLowerSet(opts.BlockedTables),
		blockedColumns: toLowerSet(opts.BlockedColumns),
		allowExplain:   opts.AllowExplain,
	}
	return v
}

func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}

// Validate reports whether sql is safe to execute. It never panics and
// never returns a nil error alongside ok == false.
func (v *SQLValidator) Validate(sql string) (bool, *apperr.Error) {
	if err := v.check(sql); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateOrRaise is the throwing-style twin of Validate, for call sites
// that already operate in terms of *apperr.Error.
func (v *SQLValidator) ValidateOrRaise(sql string) *apperr.Error {
	return v.check(sql)
}

func (v *SQLValidator) check(sql string) *apperr.Error {
	if strings.TrimSpace(sql) == "" {
		return apperr.SQLParseError("SQL statement is empty")
	}

	tree, perr := pgquery.ParseToJSON(sql)
	if perr != nil {
		return apperr.SQLParseError("failed to parse SQL: %s", perr)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(tree), &parsed); err != nil {
		return apperr.SQLParseError("failed to decode parse tree: %s", err)
	}

	stmtsRaw, _ := parsed["stmts"].([]interface{})
	if len(stmtsRaw) == 0 {
		return apperr.SQLParseError("no SQL statement found")
	}
	if len(stmtsRaw) > 1 {
		return apperr.SecurityViolation("multiple statements are not allowed in a single request")
	}

	wrapper, _ := stmtsRaw[0].(map[string]interface{})
	stmt, _ := wrapper["stmt"].(map[string]interface{})
	if len(stmt) == 0 {
		return apperr.SQLParseError("no SQL statement found")
	}

	nodeType := soleKey(stmt)
	switch nodeType {
	case "SelectStmt":
		// allowed
	case "ExplainStmt":
		if !v.allowExplain {
			return apperr.SecurityViolation("EXPLAIN statements are not permitted by this database's policy")
		}
	default:
		keyword, ok := statementKeyword[nodeType]
		if !ok {
			keyword = strings.ToUpper(strings.TrimSuffix(nodeType, "Stmt"))
		}
		return apperr.SecurityViolation("%s statements are not allowed, only SELECT/WITH/EXPLAIN queries are permitted", keyword)
	}

	return v.walk(stmt)
}

// soleKey returns the single key of a one-entry map, which is how pg_query's
// JSON AST wraps every node: {"SelectStmt": {...}}.
func soleKey(m map[string]interface{}) string {
	for k := range m {
		return k
	}
	return ""
}

// walk recurses through the entire parse tree looking for blocked tables,
// blocked columns, blocked functions, and writes nested inside subqueries
// or CTEs. It returns on the first violation found.
func (v *SQLValidator) walk(node interface{}) *apperr.Error {
	switch n := node.(type) {
	case map[string]interface{}:
		for key, val := range n {
			if writeStatementTypes[key] {
				keyword := statementKeyword[key]
				return apperr.SecurityViolation("%s statements are not allowed inside a subquery or CTE", keyword)
			}

			switch key {
			case "RangeVar":
				if err := v.checkRangeVar(val); err != nil {
					return err
				}
			case "ColumnRef":
				if err := v.checkColumnRef(val); err != nil {
					return err
				}
			case "FuncCall":
				if err := v.checkFuncCall(val); err != nil {
					return err
				}
			}

			if err := v.walk(val); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range n {
			if err := v.walk(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *SQLValidator) checkRangeVar(val interface{}) *apperr.Error {
	m, ok := val.(map[string]interface{})
	if !ok {
		return nil
	}
	relname, _ := m["relname"].(string)
	if relname == "" {
		return nil
	}
	if v.blockedTables[strings.ToLower(relname)] {
		return apperr.SecurityViolation("access to table %q is not allowed", strings.ToLower(relname))
	}
	return nil
}

func (v *SQLValidator) checkColumnRef(val interface{}) *apperr.Error {
	m, ok := val.(map[string]interface{})
	if !ok {
		return nil
	}
	fields, _ := m["fields"].([]interface{})
	if len(fields) == 0 {
		return nil
	}
	name, ok := stringNodeValue(fields[len(fields)-1])
	if !ok || name == "" {
		return nil
	}
	if v.blockedColumns[strings.ToLower(name)] {
		return apperr.SecurityViolation("access to column %q is not allowed", strings.ToLower(name))
	}
	return nil
}

func (v *SQLValidator) checkFuncCall(val interface{}) *apperr.Error {
	m, ok := val.(map[string]interface{})
	if !ok {
		return nil
	}
	funcname, _ := m["funcname"].([]interface{})
	if len(funcname) == 0 {
		return nil
	}
	name, ok := stringNodeValue(funcname[len(funcname)-1])
	if !ok || name == "" {
		return nil
	}
	name = strings.ToLower(name)
	for _, blocked := range v.security.BlockedFunctions {
		if strings.ToLower(blocked) == name {
			return apperr.SecurityViolation("function %q is not allowed", name)
		}
	}
	return nil
}

// stringNodeValue extracts the scalar value out of a pg_query String node,
// which appears as {"String": {"sval": "..."}} in current releases and as
// {"String": {"str": "..."}} in older ones. A*Star wildcard nodes ("*")
// return ok == false since they carry no identifier to check.
func stringNodeValue(node interface{}) (string, bool) {
	wrapper, ok := node.(map[string]interface{})
	if !ok {
		return "", false
	}
	strNode, ok := wrapper["String"].(map[string]interface{})
	if !ok {
		return "", false
	}
	if sval, ok := strNode["sval"].(string); ok {
		return sval, true
	}
	if str, ok := strNode["str"].(string); ok {
		return str, true
	}
	return "", false
}
