package schema

import (
	"fmt"
	"strings"

	"github.com/unijord/contentmeta/pkg/config"
)

// TableIdent names a table as catalog.database.table.
type TableIdent struct {
	Catalog  string
	Database string
	Table    string
}

func (t TableIdent) String() string {
	return t.Catalog + "." + t.Database + "." + t.Table
}

// ResolveTableIdent reads the catalog, database and table names.
func ResolveTableIdent(values config.Values) (TableIdent, error) {
	var ident TableIdent
	var err error
	if ident.Catalog, err = config.String(values, config.CatalogName); err != nil {
		return TableIdent{}, err
	}
	if ident.Database, err = config.String(values, config.DatabaseName); err != nil {
		return TableIdent{}, err
	}
	if ident.Table, err = config.String(values, config.TableName); err != nil {
		return TableIdent{}, err
	}
	return ident, nil
}

// ColumnTypeText renders the SQL type of e, e.g. "STRING NOT NULL".
func ColumnTypeText(e Entry) string {
	if e.Nullable {
		return e.Type.String()
	}
	return e.Type.String() + " NOT NULL"
}

// RenderCreateTableStatement renders the upsert table definition for s.
// The output depends only on values and s. Columns render their resolved
// type, so a declared VARCHAR(n) or CHAR(n) column renders as STRING.
func RenderCreateTableStatement(values config.Values, s ColumnSchema) (string, error) {
	ident, err := ResolveTableIdent(values)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(ident))
	for _, e := range s.entries {
		fmt.Fprintf(&b, "  %s %s,\n", quote(e.Name), ColumnTypeText(e))
	}

	keys := make([]string, len(PrimaryKey))
	for i, k := range PrimaryKey {
		keys[i] = quote(k)
	}
	fmt.Fprintf(&b, "  PRIMARY KEY(%s) NOT ENFORCED\n", strings.Join(keys, ", "))
	b.WriteString(")\n")
	b.WriteString("WITH (\n")
	b.WriteString("  'format-version'='2',\n")
	b.WriteString("  'write.upsert.enabled'='true'\n")
	b.WriteString(");")
	return b.String(), nil
}

// RenderCreateDatabaseStatement renders the namespace creation statement.
func RenderCreateDatabaseStatement(values config.Values) (string, error) {
	ident, err := ResolveTableIdent(values)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s.%s", quote(ident.Catalog), quote(ident.Database)), nil
}

func quoteIdent(t TableIdent) string {
	return quote(t.Catalog) + "." + quote(t.Database) + "." + quote(t.Table)
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
