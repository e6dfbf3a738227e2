package dbx

import (
	"sync"

	"github.com/nyashahama/nlsql-queryengine/internal/schema"
)

// SchemaCache is the port the orchestrator uses to look up a database's
// shape by name. Population/introspection of a live PostgreSQL catalog is
// out of scope (spec.md §1); this package only stores and serves whatever
// snapshots the caller supplies.
type SchemaCache interface {
	Get(databaseName string) (schema.DatabaseSchema, bool)
}

// SnapshotCache is an in-memory, immutable-after-load SchemaCache. Callers
// populate it once at startup (or refresh it out-of-band) via Set/Load; the
// orchestrator only ever reads from it.
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[string]schema.DatabaseSchema
}

// NewSnapshotCache returns an empty cache ready for Set/Load.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{snapshots: make(map[string]schema.DatabaseSchema)}
}

// Get implements SchemaCache.
func (c *SnapshotCache) Get(databaseName string) (schema.DatabaseSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[databaseName]
	return s, ok
}

// Set stores (or replaces) the snapshot for one database.
func (c *SnapshotCache) Set(s schema.DatabaseSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[s.DatabaseName] = s
}

// Load replaces the entire cache contents atomically from the caller's
// perspective: readers see either the old or the new full set, never a mix.
func (c *SnapshotCache) Load(snapshots map[string]schema.DatabaseSchema) {
	copied := make(map[string]schema.DatabaseSchema, len(snapshots))
	for k, v := range snapshots {
		copied[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = copied
}
