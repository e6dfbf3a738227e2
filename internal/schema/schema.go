// Package schema defines the database-shape snapshot handed to the LLM
// during SQL generation. It has no dependencies on the rest of the engine
// so both internal/llm and internal/dbx can share it without a cycle.
package schema

import (
	"fmt"
	"strings"
)

// ColumnInfo describes one column of one table.
type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// TableInfo describes one table (or view) and its columns.
type TableInfo struct {
	SchemaName string       `json:"schema_name"`
	TableName  string       `json:"table_name"`
	Columns    []ColumnInfo `json:"columns"`
}

// DatabaseSchema is an immutable snapshot of a database's shape, as
// supplied by a SchemaCache. Nothing in the engine mutates it.
type DatabaseSchema struct {
	DatabaseName string      `json:"database_name"`
	Tables       []TableInfo `json:"tables"`
	Version      string      `json:"version"`
}

// Describe renders the schema as compact text suitable for embedding in an
// LLM prompt.
func (s DatabaseSchema) Describe() string {
	var sb strings.Builder
	for _, t := range s.Tables {
		qualified := t.TableName
		if t.SchemaName != "" && t.SchemaName != "public" {
			qualified = t.SchemaName + "." + t.TableName
		}
		fmt.Fprintf(&sb, "TABLE %s (\n", qualified)
		for _, c := range t.Columns {
			flags := ""
			if c.IsPrimaryKey {
				flags += " PRIMARY KEY"
			}
			if !c.IsNullable {
				flags += " NOT NULL"
			}
			fmt.Fprintf(&sb, "  %s %s%s\n", c.Name, c.DataType, flags)
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
