package llm

import "testing"

func TestExtractSQLFencedSQLBlock(t *testing.T) {
	got := extractSQL("Here you go:\n```sql\nSELECT 1\n```")
	if want := "SELECT 1;"; got != want {
		t.Fatalf("extractSQL() = %q, want %q", got, want)
	}
}

func TestExtractSQLGenericFencedBlock(t *testing.T) {
	got := extractSQL("```\nSELECT * FROM users;\n```")
	if want := "SELECT * FROM users;"; got != want {
		t.Fatalf("extractSQL() = %q, want %q", got, want)
	}
}

func TestExtractSQLBarePlainText(t *testing.T) {
	got := extractSQL("SELECT * FROM users;")
	if want := "SELECT * FROM users;"; got != want {
		t.Fatalf("extractSQL() = %q, want %q", got, want)
	}
}

func TestExtractSQLBareWithStatement(t *testing.T) {
	got := extractSQL("WITH cte AS (SELECT 1) SELECT * FROM cte")
	if want := "WITH cte AS (SELECT 1) SELECT * FROM cte;"; got != want {
		t.Fatalf("extractSQL() = %q, want %q", got, want)
	}
}

func TestExtractSQLNoMatch(t *testing.T) {
	if got := extractSQL("I'm sorry, I can't help with that."); got != "" {
		t.Fatalf("extractSQL() = %q, want empty", got)
	}
}

func TestExtractSQLEmptyContent(t *testing.T) {
	if got := extractSQL("   "); got != "" {
		t.Fatalf("extractSQL() = %q, want empty", got)
	}
}

func TestNormalizeSQLCollapsesTrailingSemicolons(t *testing.T) {
	got := normalizeSQL("SELECT 1;;;")
	if want := "SELECT 1;"; got != want {
		t.Fatalf("normalizeSQL() = %q, want %q", got, want)
	}
}
