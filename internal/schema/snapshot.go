package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadSnapshot reads a DatabaseSchema from a JSON file on disk. Population
// of the snapshot itself (introspecting a live catalog) is out of scope;
// this is the one loading mechanism the engine ships with, matching
// spec.md's "accept DatabaseSchema snapshots from a pluggable cache".
func LoadSnapshot(path string) (DatabaseSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DatabaseSchema{}, fmt.Errorf("read schema snapshot %q: %w", path, err)
	}

	var s DatabaseSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return DatabaseSchema{}, fmt.Errorf("parse schema snapshot %q: %w", path, err)
	}
	return s, nil
}
