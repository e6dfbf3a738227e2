package dbx

import (
	"testing"

	"github.com/nyashahama/nlsql-queryengine/internal/schema"
)

func TestSnapshotCacheGetMiss(t *testing.T) {
	c := NewSnapshotCache()
	if _, ok := c.Get("billing"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestSnapshotCacheSetAndGet(t *testing.T) {
	c := NewSnapshotCache()
	c.Set(schema.DatabaseSchema{DatabaseName: "billing", Version: "v1"})

	got, ok := c.Get("billing")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Version != "v1" {
		t.Fatalf("Version = %q, want v1", got.Version)
	}
}

func TestSnapshotCacheLoadReplacesContents(t *testing.T) {
	c := NewSnapshotCache()
	c.Set(schema.DatabaseSchema{DatabaseName: "stale"})

	c.Load(map[string]schema.DatabaseSchema{
		"billing": {DatabaseName: "billing"},
	})

	if _, ok := c.Get("stale"); ok {
		t.Fatal("expected Load to replace prior contents entirely")
	}
	if _, ok := c.Get("billing"); !ok {
		t.Fatal("expected billing to be present after Load")
	}
}
