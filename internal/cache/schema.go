package cache

// All cache tables use "cache_key" as the primary key column for consistency

// GoogleBooksCacheSchema defines the schema for Google Books search pages
const GoogleBooksCacheSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_expires_at ON googlebooks_cache(expires_at);
`

// GoogleBooksTable is the table holding Google Books responses.
const GoogleBooksTable = "googlebooks_cache"

// AllCacheSchemas lists every schema created when a cache is opened.
var AllCacheSchemas = []string{
	GoogleBooksCacheSchema,
}

// ValidCacheTableNames whitelists table names interpolated into queries.
var ValidCacheTableNames = map[string]bool{
	GoogleBooksTable: true,
}
