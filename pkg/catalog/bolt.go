package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/unijord/contentmeta/pkg/schema"
)

var (
	// "catalog.database" -> namespace entry
	bucketNamespaces = []byte("namespaces")
	// "catalog.database.table" -> table entry
	bucketTables = []byte("tables")
)

const quotedIdent = "(`(?:[^`]|``)+`)"

var (
	createDatabaseRe = regexp.MustCompile(
		`^(?i:CREATE\s+DATABASE\s+IF\s+NOT\s+EXISTS)\s+` + quotedIdent + `\.` + quotedIdent + `\s*;?\s*$`)
	createTableRe = regexp.MustCompile(
		`(?s)^(?i:CREATE\s+TABLE\s+IF\s+NOT\s+EXISTS)\s+` + quotedIdent + `\.` + quotedIdent + `\.` + quotedIdent + `\s*\(.*\)\s*;?\s*$`)
)

// TableEntry is a table definition stored in the catalog.
type TableEntry struct {
	Ident     schema.TableIdent `json:"ident"`
	Statement string            `json:"statement"`
}

type namespaceEntry struct {
	Catalog  string `json:"catalog"`
	Database string `json:"database"`
}

// BoltCatalog is a local catalog backed by BoltDB. It executes the two
// statements EnsureTable issues and records their results.
type BoltCatalog struct {
	mu     sync.RWMutex
	cache  map[string]*TableEntry
	db     *bolt.DB
	dbPath string
}

// Open opens or creates a catalog database at path.
func Open(path string) (*BoltCatalog, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketNamespaces); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTables)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltCatalog{
		cache:  make(map[string]*TableEntry),
		db:     db,
		dbPath: path,
	}, nil
}

// Path returns the database file path.
func (c *BoltCatalog) Path() string {
	return c.dbPath
}

// ExecuteSQL implements Executor.
//
// Creating an existing database fails with ErrNamespaceExists. Creating
// an existing table is a no-op and keeps the stored definition.
func (c *BoltCatalog) ExecuteSQL(ctx context.Context, stmt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stmt = strings.TrimSpace(stmt)

	if m := createDatabaseRe.FindStringSubmatch(stmt); m != nil {
		return c.createNamespace(unquote(m[1]), unquote(m[2]))
	}
	if m := createTableRe.FindStringSubmatch(stmt); m != nil {
		ident := schema.TableIdent{
			Catalog:  unquote(m[1]),
			Database: unquote(m[2]),
			Table:    unquote(m[3]),
		}
		return c.createTable(ident, stmt)
	}
	return fmt.Errorf("%w: %.40q", ErrUnsupportedStatement, stmt)
}

func (c *BoltCatalog) createNamespace(catalogName, database string) error {
	key := []byte(catalogName + "." + database)
	data, err := json.Marshal(namespaceEntry{Catalog: catalogName, Database: database})
	if err != nil {
		return fmt.Errorf("marshal namespace: %w", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNamespaces)
		if b.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrNamespaceExists, key)
		}
		return b.Put(key, data)
	})
}

func (c *BoltCatalog) createTable(ident schema.TableIdent, stmt string) error {
	nsKey := []byte(ident.Catalog + "." + ident.Database)
	key := []byte(ident.String())
	entry := &TableEntry{Ident: ident, Statement: stmt}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var created bool
	err = c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketNamespaces).Get(nsKey) == nil {
			return fmt.Errorf("%w: %s", ErrNamespaceNotFound, nsKey)
		}
		b := tx.Bucket(bucketTables)
		if b.Get(key) != nil {
			return nil
		}
		created = true
		return b.Put(key, data)
	})
	if err != nil {
		return err
	}
	if created {
		c.cache[ident.String()] = entry
	}
	return nil
}

// Table returns the stored definition of ident.
func (c *BoltCatalog) Table(ident schema.TableIdent) (*TableEntry, error) {
	name := ident.String()

	c.mu.RLock()
	if entry, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTables).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		// copy, v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var entry TableEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal table %s: %w", name, err)
	}

	c.mu.Lock()
	c.cache[name] = &entry
	c.mu.Unlock()
	return &entry, nil
}

// Namespaces returns the "catalog.database" names in sorted order.
func (c *BoltCatalog) Namespaces() ([]string, error) {
	var names []string
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNamespaces).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the underlying database.
func (c *BoltCatalog) Close() error {
	return c.db.Close()
}

func unquote(s string) string {
	s = s[1 : len(s)-1]
	return strings.ReplaceAll(s, "``", "`")
}

var _ Executor = (*BoltCatalog)(nil)
