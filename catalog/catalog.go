// Package catalog maps table and index names to their first page-id and
// schema — the lookup every executor goes through before touching storage.
package catalog

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"coredb/types"
)

// TableInfo is everything the executors need to open a table: where its
// first heap page lives and its column schema.
type TableInfo struct {
	Name         string
	FirstPageID  types.PageID
	Schema       types.TableSchema
	IndexNames   []string
}

// IndexInfo is everything needed to open an index: which table it indexes,
// which column, and where its directory page lives.
type IndexInfo struct {
	Name            string
	TableName       string
	Column          string
	DirectoryPageID types.PageID
}

// Catalog is the registry of tables and indexes. Lookups are served from
// an in-memory map guarded by a mutex; a ristretto cache sits in front of
// it purely as a best-effort hot-path optimization (schema lookups are
// read far more often than DDL changes them), not as the source of truth —
// the map is always authoritative and the cache is invalidated on every
// write.
type Catalog struct {
	mu      sync.RWMutex
	tables  map[string]*TableInfo
	indexes map[string]*IndexInfo
	cache   *ristretto.Cache[string, any]
}

// New builds an empty catalog with its metadata cache sized for a few
// thousand entries — comfortably more than any reasonable table count.
func New() (*Catalog, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: build metadata cache: %w", err)
	}
	return &Catalog{
		tables:  make(map[string]*TableInfo),
		indexes: make(map[string]*IndexInfo),
		cache:   cache,
	}, nil
}

func tableCacheKey(name string) string { return "table:" + name }
func indexCacheKey(name string) string { return "index:" + name }

// CreateTable registers a new table and its first heap page.
func (c *Catalog) CreateTable(name string, firstPageID types.PageID, schema types.TableSchema) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return nil, fmt.Errorf("catalog: table %q already exists", name)
	}
	info := &TableInfo{Name: name, FirstPageID: firstPageID, Schema: schema}
	c.tables[name] = info
	c.cache.Del(tableCacheKey(name))
	return info, nil
}

// GetTable resolves a table by name, checking the cache first.
func (c *Catalog) GetTable(name string) (*TableInfo, bool) {
	if v, ok := c.cache.Get(tableCacheKey(name)); ok {
		return v.(*TableInfo), true
	}

	c.mu.RLock()
	info, ok := c.tables[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.cache.Set(tableCacheKey(name), info, 1)
	return info, true
}

// CreateIndex registers a new index over a table's column.
func (c *Catalog) CreateIndex(name, tableName, column string, directoryPageID types.PageID) (*IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexes[name]; exists {
		return nil, fmt.Errorf("catalog: index %q already exists", name)
	}
	table, ok := c.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("catalog: table %q not found", tableName)
	}
	info := &IndexInfo{Name: name, TableName: tableName, Column: column, DirectoryPageID: directoryPageID}
	c.indexes[name] = info
	table.IndexNames = append(table.IndexNames, name)
	c.cache.Del(indexCacheKey(name))
	c.cache.Del(tableCacheKey(tableName))
	return info, nil
}

// GetIndex resolves an index by name, checking the cache first.
func (c *Catalog) GetIndex(name string) (*IndexInfo, bool) {
	if v, ok := c.cache.Get(indexCacheKey(name)); ok {
		return v.(*IndexInfo), true
	}

	c.mu.RLock()
	info, ok := c.indexes[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.cache.Set(indexCacheKey(name), info, 1)
	return info, true
}

// IndexesForTable returns every index registered against tableName.
func (c *Catalog) IndexesForTable(tableName string) []*IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, ok := c.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]*IndexInfo, 0, len(table.IndexNames))
	for _, name := range table.IndexNames {
		if idx, ok := c.indexes[name]; ok {
			out = append(out, idx)
		}
	}
	return out
}
